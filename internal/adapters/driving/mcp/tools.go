package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/verity/internal/core/domain"
)

// QueryInput is the input schema for the query tool.
type QueryInput struct {
	Question        string `json:"question" jsonschema:"the customer question to answer from bank policy"`
	Collection      string `json:"collection,omitempty" jsonschema:"collection to search (default bank_policies)"`
	TopK            int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default 5)"`
	IncludeMetadata *bool  `json:"include_metadata,omitempty" jsonschema:"include title, section, department and snippet in sources (default true)"`
	Conversation    string `json:"conversation,omitempty" jsonschema:"prior conversation used to resolve follow-up questions"`
}

// QueryOutput is the output schema for the query tool.
type QueryOutput struct {
	Question        string         `json:"question"`
	Collection      string         `json:"collection"`
	Answer          string         `json:"answer"`
	Sources         []SourceOutput `json:"sources"`
	Confidence      float64        `json:"confidence"`
	Grounded        bool           `json:"grounded"`
	Verdict         string         `json:"verdict"`
	RetrievedChunks int            `json:"retrieved_chunks"`
	State           string         `json:"state"`
	Message         string         `json:"message,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// SourceOutput is one citation.
type SourceOutput struct {
	Rank         int     `json:"rank"`
	DocumentID   string  `json:"source_document"`
	ChunkID      string  `json:"chunk_id"`
	Title        string  `json:"title,omitempty"`
	Section      string  `json:"section,omitempty"`
	Department   string  `json:"department,omitempty"`
	DocumentType string  `json:"document_type,omitempty"`
	Similarity   float64 `json:"similarity_score"`
	Snippet      string  `json:"snippet,omitempty"`
}

// MultiQueryInput is the input schema for the multi_query tool.
type MultiQueryInput struct {
	Questions  []string `json:"questions" jsonschema:"questions to answer concurrently"`
	Collection string   `json:"collection,omitempty" jsonschema:"collection to search (default bank_policies)"`
	TopK       int      `json:"top_k,omitempty" jsonschema:"number of chunks per question (default 3)"`
}

// MultiQueryOutput is the output schema for the multi_query tool.
type MultiQueryOutput struct {
	Results []QueryOutput `json:"results"`
	Count   int           `json:"count"`
}

// CheckGroundingInput is the input schema for the check_grounding tool.
type CheckGroundingInput struct {
	Statement  string `json:"statement" jsonschema:"a drafted answer or claim to verify"`
	Collection string `json:"collection,omitempty" jsonschema:"collection to check against (default bank_policies)"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"number of chunks to consider (default 3)"`
}

// CheckGroundingOutput is the output schema for the check_grounding tool.
type CheckGroundingOutput struct {
	Statement          string         `json:"statement"`
	Collection         string         `json:"collection"`
	Verdict            string         `json:"verdict"`
	Confidence         float64        `json:"confidence"`
	SupportingEvidence []SourceOutput `json:"supporting_evidence"`
	Error              string         `json:"error,omitempty"`
}

// CollectionInfoInput is the input schema for the collection_info tool.
type CollectionInfoInput struct {
	Collection string `json:"collection,omitempty" jsonschema:"collection to describe (default bank_policies)"`
}

// CollectionInfoOutput is the output schema for the collection_info tool.
type CollectionInfoOutput struct {
	Name          string `json:"name"`
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
	Dimension     int    `json:"dimension"`
	Model         string `json:"model,omitempty"`
	Ready         bool   `json:"ready"`
}

// RouteInput is the input schema for the route_complaint tool.
type RouteInput struct {
	Complaint  string `json:"complaint" jsonschema:"the customer complaint to route"`
	Collection string `json:"collection,omitempty" jsonschema:"collection to search (default bank_policies)"`
}

// RouteOutput is the output schema for the route_complaint tool.
type RouteOutput struct {
	Complaint  string        `json:"complaint"`
	Department string        `json:"department"`
	Confidence float64       `json:"confidence"`
	Grounded   bool          `json:"grounded"`
	Citation   *SourceOutput `json:"citation,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query",
		Description: "Answer a question from bank policy documents with citations and a confidence score",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "multi_query",
		Description: "Answer several questions at once; results keep the order of the questions",
	}, s.handleMultiQuery)

	if s.ports.Grounding != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "check_grounding",
			Description: "Check whether a statement is supported by bank policy documents",
		}, s.handleCheckGrounding)
	}

	if s.ports.Collection != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "collection_info",
			Description: "Report document and chunk counts for a collection",
		}, s.handleCollectionInfo)
	}

	if s.ports.Routing != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "route_complaint",
			Description: "Find the department that owns a customer complaint",
		}, s.handleRouteComplaint)
	}
}

// handleQuery handles the query tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	opts := domain.QueryOptions{
		Collection:      input.Collection,
		TopK:            input.TopK,
		IncludeMetadata: input.IncludeMetadata,
	}

	var (
		result *domain.QueryResult
		err    error
	)
	if input.Conversation != "" {
		result, err = s.ports.Query.QueryWithContext(ctx, input.Question, input.Conversation, opts)
	} else {
		result, err = s.ports.Query.Query(ctx, input.Question, opts)
	}
	if err != nil {
		return nil, QueryOutput{}, err
	}

	return nil, toQueryOutput(result), nil
}

// handleMultiQuery handles the multi_query tool invocation.
func (s *Server) handleMultiQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input MultiQueryInput,
) (*mcp.CallToolResult, MultiQueryOutput, error) {
	opts := domain.QueryOptions{
		Collection: input.Collection,
		TopK:       input.TopK,
	}

	results, err := s.ports.Query.MultiQuery(ctx, input.Questions, opts)
	if err != nil {
		return nil, MultiQueryOutput{}, err
	}

	output := MultiQueryOutput{
		Results: make([]QueryOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = toQueryOutput(r)
	}

	return nil, output, nil
}

// handleCheckGrounding handles the check_grounding tool invocation.
func (s *Server) handleCheckGrounding(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CheckGroundingInput,
) (*mcp.CallToolResult, CheckGroundingOutput, error) {
	verdict, err := s.ports.Grounding.CheckGrounding(ctx, input.Statement, input.Collection, input.TopK)
	if err != nil {
		return nil, CheckGroundingOutput{}, err
	}

	return nil, CheckGroundingOutput{
		Statement:          verdict.Statement,
		Collection:         verdict.Collection,
		Verdict:            verdict.Verdict.String(),
		Confidence:         verdict.Confidence,
		SupportingEvidence: toSourceOutputs(verdict.SupportingEvidence),
		Error:              verdict.Error,
	}, nil
}

// handleCollectionInfo handles the collection_info tool invocation.
func (s *Server) handleCollectionInfo(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CollectionInfoInput,
) (*mcp.CallToolResult, CollectionInfoOutput, error) {
	stats, err := s.ports.Collection.Info(ctx, input.Collection)
	if err != nil {
		return nil, CollectionInfoOutput{}, err
	}

	return nil, toCollectionInfo(stats), nil
}

// handleRouteComplaint handles the route_complaint tool invocation.
func (s *Server) handleRouteComplaint(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RouteInput,
) (*mcp.CallToolResult, RouteOutput, error) {
	route, err := s.ports.Routing.Route(ctx, input.Complaint, input.Collection)
	if err != nil {
		return nil, RouteOutput{}, err
	}

	output := RouteOutput{
		Complaint:  route.Complaint,
		Department: route.Department,
		Confidence: route.Confidence,
		Grounded:   route.Grounded,
	}
	if route.Citation != nil {
		c := toSourceOutput(*route.Citation)
		output.Citation = &c
	}

	return nil, output, nil
}

func toQueryOutput(r *domain.QueryResult) QueryOutput {
	if r == nil {
		return QueryOutput{Sources: []SourceOutput{}}
	}
	return QueryOutput{
		Question:        r.Question,
		Collection:      r.Collection,
		Answer:          r.Answer,
		Sources:         toSourceOutputs(r.Sources),
		Confidence:      r.Confidence,
		Grounded:        r.Grounded,
		Verdict:         r.Verdict.String(),
		RetrievedChunks: r.RetrievedChunks,
		State:           r.State.String(),
		Message:         r.Message,
		Error:           r.Error,
	}
}

// toSourceOutputs never returns nil so the array is always present.
func toSourceOutputs(citations []domain.Citation) []SourceOutput {
	out := make([]SourceOutput, len(citations))
	for i := range citations {
		out[i] = toSourceOutput(citations[i])
	}
	return out
}

func toSourceOutput(c domain.Citation) SourceOutput {
	return SourceOutput{
		Rank:         c.Rank,
		DocumentID:   c.DocumentID,
		ChunkID:      c.ChunkID,
		Title:        c.Title,
		Section:      c.Section,
		Department:   c.Department,
		DocumentType: string(c.DocumentType),
		Similarity:   c.Similarity,
		Snippet:      c.Snippet,
	}
}

func toCollectionInfo(stats domain.CollectionStats) CollectionInfoOutput {
	return CollectionInfoOutput{
		Name:          stats.Name,
		DocumentCount: stats.DocumentCount,
		ChunkCount:    stats.ChunkCount,
		Dimension:     stats.Dimension,
		Model:         stats.Model,
		Ready:         !stats.IsEmpty(),
	}
}
