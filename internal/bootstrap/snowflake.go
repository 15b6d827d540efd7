package bootstrap

import (
	"encoding/binary"
	"errors"
	"hash/fnv"

	"github.com/jt828/go-trace-propagation/pkg/snowflake"
	snowflakeImpl "github.com/jt828/go-trace-propagation/pkg/snowflake/implementation"
)

// maxNodeID is the largest node a 10-bit snowflake node field holds.
const maxNodeID = 1023

// InitializeSnowflake builds the task id generator. cfg.NodeID wins when
// set; otherwise the node is derived from cfg.Hostname so replicas of one
// deployment get distinct nodes without coordination.
func InitializeSnowflake(cfg Config) (snowflake.Snowflake, error) {
	nodeID := cfg.NodeID
	if nodeID < 0 {
		var err error
		if nodeID, err = NodeIDFromHostname(cfg.Hostname); err != nil {
			return nil, err
		}
	}
	return snowflakeImpl.NewSnowflake(nodeID)
}

func NodeIDFromHostname(hostname string) (int64, error) {
	if hostname == "" {
		return 0, errors.New("snowflake: no hostname to derive a node id from, set SNOWFLAKE_NODE_ID")
	}

	h := fnv.New64a()
	h.Write([]byte(hostname))
	return int64(binary.BigEndian.Uint64(h.Sum(nil)) % (maxNodeID + 1)), nil
}
