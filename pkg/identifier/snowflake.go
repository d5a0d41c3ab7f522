package identifier

import "github.com/bwmarrin/snowflake"

// Generator produces time-sortable, globally unique string ids for
// configuration entries. Snowflake ids carry a millisecond timestamp in
// the high bits, so numeric order follows creation order.
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &Generator{node: node}, nil
}

func (g *Generator) NewID() string {
	return g.node.Generate().String()
}
