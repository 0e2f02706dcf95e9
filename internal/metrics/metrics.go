package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for the service.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	searchRequestsTotal = make(map[string]int64) // by outcome
	searchResultsTotal  int64

	embedCallsTotal = make(map[string]int64) // by task type and outcome
	llmCallsTotal   = make(map[llmKey]int64)

	crawlJobsTotal    = make(map[string]int64) // by terminal status
	pagesCrawledTotal int64
	pagesIndexedTotal int64

	retentionJobsDeleted    int64
	retentionQueriesDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type llmKey struct {
	Model   string
	Success string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordSearch records one served semantic search and its result count.
func RecordSearch(ok bool, results int) {
	mu.Lock()
	defer mu.Unlock()

	outcome := "error"
	if ok {
		outcome = "success"
	}
	searchRequestsTotal[outcome]++
	if results > 0 {
		searchResultsTotal += int64(results)
	}
}

// RecordEmbedCall counts one embedding API call by task type.
func RecordEmbedCall(taskType string, ok bool) {
	mu.Lock()
	defer mu.Unlock()

	outcome := "error"
	if ok {
		outcome = "success"
	}
	embedCallsTotal[taskType+"|"+outcome]++
}

// RecordLLMCall counts one text-generation call.
func RecordLLMCall(model string, ok bool) {
	mu.Lock()
	defer mu.Unlock()

	s := "false"
	if ok {
		s = "true"
	}
	llmCallsTotal[llmKey{Model: model, Success: s}]++
}

// RecordCrawlJob counts a crawl job reaching a terminal status and
// adds its page counters.
func RecordCrawlJob(status string, pagesCrawled, pagesIndexed int) {
	mu.Lock()
	defer mu.Unlock()

	crawlJobsTotal[status]++
	if pagesCrawled > 0 {
		pagesCrawledTotal += int64(pagesCrawled)
	}
	if pagesIndexed > 0 {
		pagesIndexedTotal += int64(pagesIndexed)
	}
}

// RecordRetentionJobs increments the counter of crawl jobs deleted by
// TTL cleanup.
func RecordRetentionJobs(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted += deleted
}

// RecordRetentionQueries increments the counter of query-log rows
// deleted by TTL cleanup.
func RecordRetentionQueries(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionQueriesDeleted += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP sonar_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE sonar_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		fmt.Fprintf(&b, "sonar_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP sonar_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE sonar_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP sonar_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE sonar_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "sonar_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "sonar_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP sonar_search_requests_total Total semantic search requests by outcome\n")
	b.WriteString("# TYPE sonar_search_requests_total counter\n")

	var outcomes []string
	for o := range searchRequestsTotal {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(&b, "sonar_search_requests_total{outcome=\"%s\"} %d\n", o, searchRequestsTotal[o])
	}

	b.WriteString("# HELP sonar_search_results_total Total search results returned\n")
	b.WriteString("# TYPE sonar_search_results_total counter\n")
	fmt.Fprintf(&b, "sonar_search_results_total %d\n", searchResultsTotal)

	b.WriteString("# HELP sonar_embed_calls_total Total embedding API calls by task type and outcome\n")
	b.WriteString("# TYPE sonar_embed_calls_total counter\n")

	var embedKeys []string
	for k := range embedCallsTotal {
		embedKeys = append(embedKeys, k)
	}
	sort.Strings(embedKeys)
	for _, k := range embedKeys {
		parts := strings.SplitN(k, "|", 2)
		fmt.Fprintf(&b, "sonar_embed_calls_total{task=\"%s\",outcome=\"%s\"} %d\n",
			parts[0], parts[1], embedCallsTotal[k])
	}

	b.WriteString("# HELP sonar_llm_calls_total Total text generation calls\n")
	b.WriteString("# TYPE sonar_llm_calls_total counter\n")

	var llmKeys []llmKey
	for k := range llmCallsTotal {
		llmKeys = append(llmKeys, k)
	}
	sort.Slice(llmKeys, func(i, j int) bool {
		if llmKeys[i].Model != llmKeys[j].Model {
			return llmKeys[i].Model < llmKeys[j].Model
		}
		return llmKeys[i].Success < llmKeys[j].Success
	})
	for _, k := range llmKeys {
		fmt.Fprintf(&b, "sonar_llm_calls_total{model=\"%s\",success=\"%s\"} %d\n",
			k.Model, k.Success, llmCallsTotal[k])
	}

	b.WriteString("# HELP sonar_crawl_jobs_total Total crawl jobs by terminal status\n")
	b.WriteString("# TYPE sonar_crawl_jobs_total counter\n")

	var statuses []string
	for s := range crawlJobsTotal {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "sonar_crawl_jobs_total{status=\"%s\"} %d\n", s, crawlJobsTotal[s])
	}

	b.WriteString("# HELP sonar_pages_crawled_total Total pages fetched by crawl jobs\n")
	b.WriteString("# TYPE sonar_pages_crawled_total counter\n")
	fmt.Fprintf(&b, "sonar_pages_crawled_total %d\n", pagesCrawledTotal)

	b.WriteString("# HELP sonar_pages_indexed_total Total pages chunked and embedded\n")
	b.WriteString("# TYPE sonar_pages_indexed_total counter\n")
	fmt.Fprintf(&b, "sonar_pages_indexed_total %d\n", pagesIndexedTotal)

	b.WriteString("# HELP sonar_retention_jobs_deleted_total Total crawl jobs deleted by TTL\n")
	b.WriteString("# TYPE sonar_retention_jobs_deleted_total counter\n")
	fmt.Fprintf(&b, "sonar_retention_jobs_deleted_total %d\n", retentionJobsDeleted)

	b.WriteString("# HELP sonar_retention_queries_deleted_total Total query-log rows deleted by TTL\n")
	b.WriteString("# TYPE sonar_retention_queries_deleted_total counter\n")
	fmt.Fprintf(&b, "sonar_retention_queries_deleted_total %d\n", retentionQueriesDeleted)

	return b.String()
}
