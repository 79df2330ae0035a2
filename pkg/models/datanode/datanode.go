package datanode

import (
	"fmt"
	"strings"
)

// DataNode is one physical table on one datasource.
type DataNode struct {
	DataSource string `json:"data_source"`
	Table      string `json:"table"`
}

func (dn DataNode) String() string {
	return dn.DataSource + "." + dn.Table
}

// ParseDataNode parses "ds.table".
func ParseDataNode(s string) (DataNode, error) {
	s = strings.TrimSpace(s)
	idx := strings.Index(s, ".")
	if idx <= 0 || idx == len(s)-1 || strings.Count(s, ".") != 1 {
		return DataNode{}, fmt.Errorf("invalid data node format %q, expected <datasource>.<table>", s)
	}
	return DataNode{DataSource: s[:idx], Table: s[idx+1:]}, nil
}

// ParseDataNodes expands an inline expression and parses every resulting node.
func ParseDataNodes(expr string) ([]DataNode, error) {
	names, err := ExpandInline(expr)
	if err != nil {
		return nil, err
	}
	nodes := make([]DataNode, 0, len(names))
	seen := map[DataNode]struct{}{}
	for _, n := range names {
		dn, err := ParseDataNode(n)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[dn]; ok {
			return nil, fmt.Errorf("duplicate data node %s in %q", dn, expr)
		}
		seen[dn] = struct{}{}
		nodes = append(nodes, dn)
	}
	return nodes, nil
}
