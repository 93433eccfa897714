package handlers

import (
	"context"
	"time"

	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/application/queries/bus"
	"github.com/nicobenz/flowpertoire/domain/core/aggregation"
	"github.com/nicobenz/flowpertoire/domain/projection"
)

// ListTreesHandler handles ListTreesQuery
type ListTreesHandler struct {
	reader *TreeReader
}

func NewListTreesHandler(reader *TreeReader) *ListTreesHandler {
	return &ListTreesHandler{reader: reader}
}

// Handle returns the user's root trees ordered by id
func (h *ListTreesHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.ListTreesQuery)
	forest, err := h.reader.Forest(ctx, query.UserID)
	if err != nil {
		return nil, err
	}
	return forest.RootTrees(), nil
}

// GetTreeHandler handles GetTreeQuery
type GetTreeHandler struct {
	reader *TreeReader
}

func NewGetTreeHandler(reader *TreeReader) *GetTreeHandler {
	return &GetTreeHandler{reader: reader}
}

// Handle returns a queries.TreeView
func (h *GetTreeHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetTreeQuery)
	tree, data, err := h.reader.Tree(ctx, query.UserID, query.Tree)
	if err != nil {
		return nil, err
	}

	opts := h.reader.Options()
	structure := data.Structure()
	fingerprint, err := projection.Fingerprint(projection.ProjectStructure(structure, opts...))
	if err != nil {
		return nil, err
	}

	return queries.TreeView{
		Tree:        tree,
		Data:        data,
		Structure:   structure,
		Nodes:       aggregation.New(data, opts...).ResolveAll(),
		Fingerprint: fingerprint,
	}, nil
}

// GetElementsHandler handles GetElementsQuery
type GetElementsHandler struct {
	reader *TreeReader
	styles []projection.StyleRule
}

func NewGetElementsHandler(reader *TreeReader, theme projection.Theme) *GetElementsHandler {
	return &GetElementsHandler{reader: reader, styles: projection.DefaultStyleRules(theme)}
}

// Handle returns a queries.ElementsView
func (h *GetElementsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetElementsQuery)
	_, data, err := h.reader.Tree(ctx, query.UserID, query.Tree)
	if err != nil {
		return nil, err
	}

	var elements []projection.Element
	err = h.reader.tracer.TraceFunction(ctx, "tree.project", func(ctx context.Context) error {
		start := time.Now()
		elements = projection.Project(data, query.StructureOnly, h.reader.Options()...)
		h.reader.Observe(query.StructureOnly, len(data.Nodes), start)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fingerprint, err := projection.Fingerprint(elements)
	if err != nil {
		return nil, err
	}
	return queries.ElementsView{
		Elements:    elements,
		Styles:      h.styles,
		Fingerprint: fingerprint,
	}, nil
}

// GetFillsHandler handles GetFillsQuery
type GetFillsHandler struct {
	reader *TreeReader
}

func NewGetFillsHandler(reader *TreeReader) *GetFillsHandler {
	return &GetFillsHandler{reader: reader}
}

// Handle returns a queries.FillsView
func (h *GetFillsHandler) Handle(ctx context.Context, q bus.Query) (interface{}, error) {
	query := q.(queries.GetFillsQuery)
	_, data, err := h.reader.Tree(ctx, query.UserID, query.Tree)
	if err != nil {
		return nil, err
	}
	return queries.FillsView(projection.FillPatch(data, h.reader.Options()...)), nil
}
