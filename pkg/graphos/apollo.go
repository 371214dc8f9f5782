package graphos

import (
	"context"
	"fmt"
	"net/http"

	graphql "github.com/hasura/go-graphql-client"
)

// Config holds the Apollo GraphOS connection and target graph settings.
type Config struct {
	// Endpoint is the platform API URL.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// Key is the graph API key. Prefer setting it via environment.
	Key string `json:"key" yaml:"key"`
	// GraphRef is the graph id the subgraph belongs to.
	GraphRef string `json:"graphRef" yaml:"graph_ref"`
	// GraphVariant is the variant to publish into.
	GraphVariant string `json:"graphVariant" yaml:"graph_variant"`
	// AdvertisedSubgraphURL is the routing URL registered for this
	// subgraph.
	AdvertisedSubgraphURL string `json:"advertisedSubgraphUrl" yaml:"advertised_subgraph_url"`
}

// PublishResponse summarises a subgraph publish.
type PublishResponse struct {
	LaunchID   string
	LaunchURL  string
	WasCreated bool
	WasUpdated bool
	IsSuccess  bool
}

// PartialSchemaInput is the platform API input carrying the SDL.
type PartialSchemaInput struct {
	Sdl *string `json:"sdl,omitempty"`
}

// GitContextInput attributes the publish to a commit.
type GitContextInput struct {
	Commit    *string `json:"commit,omitempty"`
	Committer *string `json:"committer,omitempty"`
}

// DownstreamLaunchInitiation is the platform API launch initiation enum.
type DownstreamLaunchInitiation string

// Launch initiation modes.
const (
	LaunchInitiationSync DownstreamLaunchInitiation = "SYNC"
)

// Client publishes subgraph schemas to Apollo GraphOS.
type Client struct {
	inner       *graphql.Client
	cfg         Config
	serviceName string
	revision    string
	commit      string
}

type headerTransport struct {
	name    string
	version string
	key     string
	next    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("apollographql-client-name", t.name)
	req.Header.Set("apollographql-client-version", t.version)
	req.Header.Set("x-api-key", t.key)
	return t.next.RoundTrip(req)
}

// NewClient creates a GraphOS client. Revision and commit identify the
// publishing build.
func NewClient(cfg Config, serviceName, revision, commit string) *Client {
	httpClient := &http.Client{
		Transport: &headerTransport{
			name:    serviceName,
			version: revision,
			key:     cfg.Key,
			next:    http.DefaultTransport,
		},
	}
	return &Client{
		inner:       graphql.NewClient(cfg.Endpoint, httpClient),
		cfg:         cfg,
		serviceName: serviceName,
		revision:    revision,
		commit:      commit,
	}
}

// PublishSchema uploads the SDL as this service's subgraph and waits for a
// synchronous launch.
func (c *Client) PublishSchema(ctx context.Context, schema string) (*PublishResponse, error) {
	var mutation struct {
		Graph struct {
			PublishSubgraph struct {
				LaunchURL  *string `graphql:"launchUrl"`
				WasCreated bool    `graphql:"wasCreated"`
				WasUpdated bool    `graphql:"wasUpdated"`
				Launch     *struct {
					ID     string `graphql:"id"`
					Status string `graphql:"status"`
				} `graphql:"launch"`
			} `graphql:"publishSubgraph(graphVariant: $graphVariant, name: $name, url: $url, revision: $revision, activePartialSchema: $activePartialSchema, gitContext: $gitContext, downstreamLaunchInitiation: $downstreamLaunchInitiation)"`
		} `graphql:"graph(id: $graphId)"`
	}

	committer := c.serviceName
	variables := map[string]any{
		"graphId":                    graphql.ID(c.cfg.GraphRef),
		"graphVariant":               c.cfg.GraphVariant,
		"name":                       c.serviceName,
		"url":                        &c.cfg.AdvertisedSubgraphURL,
		"revision":                   c.revision,
		"activePartialSchema":        PartialSchemaInput{Sdl: &schema},
		"gitContext":                 GitContextInput{Commit: &c.commit, Committer: &committer},
		"downstreamLaunchInitiation": LaunchInitiationSync,
	}

	if err := c.inner.Mutate(ctx, &mutation, variables); err != nil {
		return nil, fmt.Errorf("publish subgraph: %w", err)
	}

	published := mutation.Graph.PublishSubgraph
	resp := &PublishResponse{
		WasCreated: published.WasCreated,
		WasUpdated: published.WasUpdated,
		IsSuccess:  true,
	}
	if published.LaunchURL != nil {
		resp.LaunchURL = *published.LaunchURL
	}
	if published.Launch != nil {
		resp.LaunchID = published.Launch.ID
		resp.IsSuccess = published.Launch.Status != "LAUNCH_FAILED"
	}
	return resp, nil
}
