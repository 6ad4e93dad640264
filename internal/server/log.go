package server

import (
	"fmt"
	"log"
	"strings"
)

// logEvent emits one key=value line per server operation, e.g.
// [rollover] userID=abc moved=3.
func logEvent(event, userID string, kv ...any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] userID=%s", event, userID)
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", kv[i], kv[i+1])
	}
	log.Println(sb.String())
}
