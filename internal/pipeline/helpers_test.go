package pipeline

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/tabnet"
)

// addRowsBody renders a response body the way the service does, one row per
// region code in ascending order.
func addRowsBody(values map[int]float64) string {
	var rows []string
	for code := 1; code <= 9; code++ {
		v, ok := values[code]
		if !ok {
			continue
		}
		name := tabnet.Regions[code]
		if name == "" {
			name = "Desconhecida"
		}
		n := strconv.FormatFloat(v, 'f', -1, 64)
		rows = append(rows, "['"+strconv.Itoa(code)+" Região "+name+"', {v: "+n+", f: '"+n+"'}]")
	}
	return "<html><script>\nvar data = new google.visualization.DataTable();\n" +
		"data.addRows([\n" + strings.Join(rows, ",\n") + "\n]);\n</script></html>"
}

func allRegions(v float64) map[int]float64 {
	return map[int]float64{1: v, 2: v + 1, 3: v + 2, 4: v + 3, 5: v + 4}
}

// jobEncoder makes the payload the job's identity so fake transports can
// answer per job.
type jobEncoder struct{}

func (jobEncoder) Encode(job model.Job) (string, error) { return job.String(), nil }

// scriptedTransport answers each payload with a function of the payload and
// the number of times it has been requested.
type scriptedTransport struct {
	mu      sync.Mutex
	calls   map[string]int
	warmups int
	warmErr error
	respond func(ctx context.Context, payload string, call int) (string, error)
}

func newScriptedTransport(respond func(ctx context.Context, payload string, call int) (string, error)) *scriptedTransport {
	return &scriptedTransport{calls: make(map[string]int), respond: respond}
}

func (s *scriptedTransport) Warmup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warmups++
	return s.warmErr
}

func (s *scriptedTransport) Post(ctx context.Context, payload string) (string, error) {
	s.mu.Lock()
	s.calls[payload]++
	call := s.calls[payload]
	s.mu.Unlock()
	return s.respond(ctx, payload, call)
}

func (s *scriptedTransport) Calls(payload string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[payload]
}

func (s *scriptedTransport) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func badStatus() error {
	return harvesterr.New(harvesterr.ErrCategoryTransport, harvesterr.CodeBadStatus, "status 503")
}

// noSleep makes a fetcher skip its backoff pauses and counts them
func noSleep(f *Fetcher, count *int) {
	f.sleep = func(ctx context.Context, d time.Duration) error {
		*count++
		return ctx.Err()
	}
}
