// Package subgraph implements the indexed discovery path: instead of
// searching raw RPC logs, it pages pre-indexed deposit/withdraw/transfer
// records out of a GraphQL service and reduces them to the block-number
// set consumed by range clustering.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is a GraphQL client for a vault subgraph.
type Client struct {
	graphqlURL string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a subgraph client for the given endpoint.
func NewClient(graphqlURL, apiKey string) *Client {
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		pageSize:   1000,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

var eventEntities = []string{"deposits", "withdraws", "transfers"}

// FetchEventBlocks returns the block numbers of every indexed deposit,
// withdraw, and transfer record for the vault. The result may contain
// duplicates and is not sorted; clustering handles both.
func (c *Client) FetchEventBlocks(ctx context.Context, vault string) ([]uint64, error) {
	var blocks []uint64
	for _, entity := range eventEntities {
		entityBlocks, err := c.fetchEntityBlocks(ctx, entity, strings.ToLower(vault))
		if err != nil {
			return nil, fmt.Errorf("subgraph: fetch %s: %w", entity, err)
		}
		blocks = append(blocks, entityBlocks...)
	}
	return blocks, nil
}

// fetchEntityBlocks pages one entity collection, keyed by id to make the
// pagination duplicate-safe across identical block numbers.
func (c *Client) fetchEntityBlocks(ctx context.Context, entity, vault string) ([]uint64, error) {
	query := fmt.Sprintf(`
		query EventBlocks($vault: Bytes!, $first: Int!, $lastID: ID!) {
			records: %s(
				first: $first
				orderBy: id
				orderDirection: asc
				where: { vault: $vault, id_gt: $lastID }
			) {
				id
				blockNumber
			}
		}
	`, entity)

	var blocks []uint64
	lastID := ""
	for {
		variables := map[string]any{
			"vault":  vault,
			"first":  c.pageSize,
			"lastID": lastID,
		}

		respData, err := c.doQuery(ctx, query, variables)
		if err != nil {
			return nil, err
		}

		var result struct {
			Records []struct {
				ID          string `json:"id"`
				BlockNumber string `json:"blockNumber"`
			} `json:"records"`
		}
		if err := json.Unmarshal(respData, &result); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}

		for _, record := range result.Records {
			block, err := strconv.ParseUint(record.BlockNumber, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid block number %q: %w", record.BlockNumber, err)
			}
			blocks = append(blocks, block)
		}

		if len(result.Records) < c.pageSize {
			return blocks, nil
		}
		lastID = result.Records[len(result.Records)-1].ID
	}
}

// FetchLatestBlock returns the latest block indexed by the subgraph,
// useful for spotting indexing lag before trusting its ranges.
func (c *Client) FetchLatestBlock(ctx context.Context) (uint64, error) {
	query := `
		query LatestBlock {
			_meta {
				block {
					number
				}
			}
		}
	`

	respData, err := c.doQuery(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("subgraph: fetch latest block: %w", err)
	}

	var result struct {
		Meta struct {
			Block struct {
				Number uint64 `json:"number"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return 0, fmt.Errorf("subgraph: decode latest block: %w", err)
	}

	return result.Meta.Block.Number, nil
}

// doQuery executes a GraphQL query and returns the raw data field.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	reqBody := graphqlRequest{
		Query:     query,
		Variables: variables,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}

	return gqlResp.Data, nil
}
