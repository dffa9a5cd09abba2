/*
Package galileo is a small client for the Galileo observability API.

# Quick Start

	client, err := galileo.New(galileo.ClientConfig{
	    APIKey:  os.Getenv("GALILEO_API_KEY"),
	    BaseURL: os.Getenv("GALILEO_API_URL"),
	})
	if err != nil {
	    log.Fatal(err)
	}

	projectID, err := client.ProjectID(ctx, "My Project")
	logStreamID, err := client.LogStreamID(ctx, projectID, "production")

	traces, err := galileo.FetchAll[galileo.Trace](ctx, client,
	    galileo.TracesSearch(projectID), logStreamID, 100)

# Pagination

Search endpoints return {records, num_records, next_starting_token}.
FetchAll starts at token 0 and keeps requesting until the server sends a
null token or a page shorter than the page size. One generic loop serves
every search endpoint; a SearchEndpoint names the path and the body field
that carries the parent id:

  - SessionsSearch, TracesSearch, SpansSearch filter on log_stream_id
  - ExperimentTracesSearch filters on experiment_id, newest first

# Errors

Every error matches one of ErrConfig, ErrTransport or ErrNotFound under
errors.Is. Nothing is retried and a failed page discards the pages already
received.

# Metrics

Pass an Instrumentation in ClientConfig to count requests, latency and
received records in a Prometheus registry of your choice.
*/
package galileo
