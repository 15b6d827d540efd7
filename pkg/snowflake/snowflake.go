package snowflake

import "time"

// Snowflake generates roughly time ordered unique ids.
type Snowflake interface {
	Generate() int64
	// Node is the node id baked into every generated id.
	Node() int64
	// Time returns when id was generated.
	Time(id int64) time.Time
}
