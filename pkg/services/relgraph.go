package services

import (
	"github.com/erdflow/erdflow-engine/pkg/models"
)

// GraphEdge is one adjacency entry: the entity on the other end of a
// relationship plus the record that produced the edge.
type GraphEdge struct {
	OtherEntity string
	Record      models.RelationshipRecord
}

// RelationshipGraphNode holds the four adjacency views of one entity:
// incoming/outgoing split by parental (cascade delete) vs. lookup edges.
// Incoming edges point at the referencing side (the entity holding the
// lookup); outgoing edges leave the referenced side.
type RelationshipGraphNode struct {
	Entity           string
	IncomingParental []GraphEdge
	IncomingLookup   []GraphEdge
	OutgoingParental []GraphEdge
	OutgoingLookup   []GraphEdge
}

// RelationshipGraph is the adjacency view over a set of resolved
// relationships. It is rebuilt fresh per validation call and never cached,
// since relationships can change between calls.
type RelationshipGraph struct {
	nodes map[string]*RelationshipGraphNode
}

// BuildRelationshipGraph turns a flat relationship list into per-entity
// adjacency views. Every entity mentioned by any relationship gets a node,
// created lazily on first reference. Edge lists preserve input order.
func BuildRelationshipGraph(records []models.RelationshipRecord) *RelationshipGraph {
	g := &RelationshipGraph{nodes: make(map[string]*RelationshipGraphNode)}

	for _, record := range records {
		child := g.node(record.ReferencingEntity)
		parent := g.node(record.ReferencedEntity)

		if record.IsParental() {
			child.IncomingParental = append(child.IncomingParental,
				GraphEdge{OtherEntity: record.ReferencedEntity, Record: record})
			parent.OutgoingParental = append(parent.OutgoingParental,
				GraphEdge{OtherEntity: record.ReferencingEntity, Record: record})
		} else {
			child.IncomingLookup = append(child.IncomingLookup,
				GraphEdge{OtherEntity: record.ReferencedEntity, Record: record})
			parent.OutgoingLookup = append(parent.OutgoingLookup,
				GraphEdge{OtherEntity: record.ReferencingEntity, Record: record})
		}
	}

	return g
}

// node returns the graph node for an entity, creating it if needed.
func (g *RelationshipGraph) node(entity string) *RelationshipGraphNode {
	n, ok := g.nodes[entity]
	if !ok {
		n = &RelationshipGraphNode{Entity: entity}
		g.nodes[entity] = n
	}
	return n
}

// Node returns the graph node for an entity, or nil if the entity appears in
// no relationship.
func (g *RelationshipGraph) Node(entity string) *RelationshipGraphNode {
	return g.nodes[entity]
}

// Nodes returns the node map. Callers must not mutate it.
func (g *RelationshipGraph) Nodes() map[string]*RelationshipGraphNode {
	return g.nodes
}

// Len returns the number of entities in the graph.
func (g *RelationshipGraph) Len() int {
	return len(g.nodes)
}
