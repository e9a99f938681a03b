package memory

import (
	"fmt"
	"strings"
	"time"
)

// NewDemo returns a store seeded with a few buckets so the UI can be tried
// without credentials.
func NewDemo() *Store {
	s := New(WithPageSize(25))
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	s.Put("demo-logs", "app/2024-03-01.log", []byte(strings.Repeat("GET /health 200\n", 40)), base)
	s.Put("demo-logs", "app/2024-03-02.log", []byte(strings.Repeat("GET /health 200\n", 55)), base.Add(24*time.Hour))
	s.Put("demo-logs", "worker/", nil, base)
	s.Put("demo-logs", "worker/queue.log", []byte("job 1 done\njob 2 done\n"), base.Add(2*time.Hour))
	s.Put("demo-logs", "README.txt", []byte("Rotated daily.\n"), base)

	for i := 0; i < 60; i++ {
		key := fmt.Sprintf("raw/%02d/img_%03d.jpg", i%6, i)
		s.Put("demo-media", key, make([]byte, 1024*(i+1)), base.Add(time.Duration(i)*time.Minute))
	}
	s.Put("demo-media", "index.json", []byte(`{"images":60}`), base)

	s.CreateBucket("demo-empty")
	return s
}
