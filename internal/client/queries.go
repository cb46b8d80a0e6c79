package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/quetzal-org/quetzal-client/internal/constants"
	"github.com/quetzal-org/quetzal-client/internal/http"
	"github.com/quetzal-org/quetzal-client/pkg/quetzal"
)

// QueriesClient implements quetzal.QueriesClient.
type QueriesClient struct {
	httpClient *http.Client
}

// NewQueriesClient creates a new queries client.
func NewQueriesClient(httpClient *http.Client) *QueriesClient {
	return &QueriesClient{
		httpClient: httpClient,
	}
}

func queriesPath(workspaceID int64) string {
	if workspaceID == 0 {
		return constants.QueriesPath
	}

	return workspacePath(workspaceID) + "/queries/"
}

// Create implements quetzal.QueriesClient.Create. The server answers with a
// redirect to the first page of results, which is followed.
func (c *QueriesClient) Create(
	ctx context.Context,
	workspaceID int64,
	request *quetzal.QueryCreateRequest,
	perPage int,
) (*quetzal.Query, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	query := url.Values{}
	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}

	resp, err := c.httpClient.Do(ctx, &http.Request{
		Method: "POST",
		Path:   queriesPath(workspaceID),
		Query:  query,
		Body:   request,
	})
	if err != nil {
		return nil, fmt.Errorf("creating query: %w", err)
	}

	return decodeQuery(resp.Body)
}

// Get implements quetzal.QueriesClient.Get.
func (c *QueriesClient) Get(ctx context.Context, workspaceID, queryID int64, page, perPage int) (*quetzal.Query, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}

	if perPage > 0 {
		query.Set("per_page", strconv.Itoa(perPage))
	}

	resp, err := c.httpClient.Get(ctx, queriesPath(workspaceID)+strconv.FormatInt(queryID, 10), query)
	if err != nil {
		return nil, fmt.Errorf("getting query: %w", err)
	}

	return decodeQuery(resp.Body)
}

// Run implements quetzal.QueriesClient.Run. A zero limit collects every row.
func (c *QueriesClient) Run(ctx context.Context, workspaceID int64, query string, opts *quetzal.QueryOptions) (*quetzal.QueryResult, error) {
	if opts == nil {
		opts = &quetzal.QueryOptions{}
	}

	dialect := opts.Dialect
	if dialect == "" {
		dialect = constants.DefaultQueryDialect
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = math.MaxInt
	}

	perPage := min(limit, constants.MaxPageSize)

	details, err := c.Create(ctx, workspaceID, &quetzal.QueryCreateRequest{Dialect: dialect, Query: query}, perPage)
	if err != nil {
		return nil, err
	}

	result := &quetzal.QueryResult{QueryID: details.ID, Total: details.Total}

	// the redirect drops per_page, so the first page may hold more than asked
	rows := details.Results
	if len(rows) > limit {
		rows = rows[:limit]
	}

	for page := 2; len(rows) < limit && len(rows) < result.Total; page++ {
		details, err = c.Get(ctx, workspaceID, details.ID, page, perPage)
		if err != nil {
			return nil, err
		}

		if len(details.Results) == 0 {
			break
		}

		rows = append(rows, details.Results...)
		result.Total = details.Total
	}

	if len(rows) > limit {
		rows = rows[:limit]
	}

	result.Rows = rows

	return result, nil
}

func decodeQuery(data []byte) (*quetzal.Query, error) {
	var query quetzal.Query

	err := json.Unmarshal(data, &query)
	if err != nil {
		return nil, fmt.Errorf("parsing query: %w", err)
	}

	return &query, nil
}
