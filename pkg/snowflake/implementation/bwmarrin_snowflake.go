package implementation

import (
	"time"

	bwmarrin "github.com/bwmarrin/snowflake"
	"github.com/jt828/go-trace-propagation/pkg/snowflake"
)

type bwmarrinSnowflake struct {
	node   *bwmarrin.Node
	nodeID int64
}

func NewSnowflake(nodeID int64) (snowflake.Snowflake, error) {
	node, err := bwmarrin.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &bwmarrinSnowflake{node: node, nodeID: nodeID}, nil
}

func (s *bwmarrinSnowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

func (s *bwmarrinSnowflake) Node() int64 {
	return s.nodeID
}

func (s *bwmarrinSnowflake) Time(id int64) time.Time {
	return time.UnixMilli(bwmarrin.ParseInt64(id).Time())
}
