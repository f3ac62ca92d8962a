package sampler

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	maxHeavyCacheEntries = 256
	maxCgroupLen         = 2048
)

// Heavy holds the expensive-to-read per-pid details populated only for the
// top-K processes by CPU and memory.
type Heavy struct {
	Cmdline     string            `json:"cmdline"`
	Env         map[string]string `json:"env"`
	Cgroup      string            `json:"cgroup"`
	OpenFDCount int               `json:"open_fd_count"`
	ThreadCount int               `json:"thread_count"`
}

type heavyCache struct {
	capacity int
	entries  map[int64]Heavy
	order    []int64
}

func newHeavyCache(capacity int) *heavyCache {
	return &heavyCache{
		capacity: capacity,
		entries:  make(map[int64]Heavy),
	}
}

func (c *heavyCache) len() int {
	return len(c.entries)
}

func (c *heavyCache) contains(pid int64) bool {
	_, ok := c.entries[pid]

	return ok
}

func (c *heavyCache) get(pid int64) (Heavy, bool) {
	h, ok := c.entries[pid]

	return h, ok
}

func (c *heavyCache) put(pid int64, h Heavy) {
	c.entries[pid] = h
	c.order = append(c.order, pid)
	for len(c.entries) > c.capacity && len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, victim)
	}
}

func (c *heavyCache) remove(pid int64) {
	delete(c.entries, pid)
}

func (s *Sampler) fetchHeavyDetails(pid int64) Heavy {
	pidPath := s.pidPath(pid)
	cgroup := readFile(filepath.Join(pidPath, "cgroup"))
	if len(cgroup) > maxCgroupLen {
		cgroup = cgroup[:maxCgroupLen]
	}
	threads, _ := strconv.Atoi(strings.Fields(readStatusFields(pidPath)["Threads"] + " 0")[0])

	return Heavy{
		Cmdline:     readCmdline(pidPath),
		Env:         readEnviron(pidPath),
		Cgroup:      cgroup,
		OpenFDCount: countOpenFds(pidPath),
		ThreadCount: threads,
	}
}

func countOpenFds(pidPath string) int {
	entries, err := os.ReadDir(filepath.Join(pidPath, "fd"))
	if err != nil {
		return 0
	}

	return len(entries)
}

// HeavyDetails returns the cached heavy view for pid, if present.
func (s *Sampler) HeavyDetails(pid int64) (Heavy, bool) {
	return s.heavy.get(pid)
}

type heapEntry struct {
	metric float64
	pid    int64
}

// boundedTopK keeps the k largest entries using a slice-backed min-heap.
type boundedTopK struct {
	k       int
	entries []heapEntry
}

func (h *boundedTopK) push(e heapEntry) {
	if len(h.entries) < h.k {
		h.entries = append(h.entries, e)
		h.siftUp(len(h.entries) - 1)

		return
	}
	if h.k == 0 || e.metric <= h.entries[0].metric {
		return
	}
	h.entries[0] = e
	h.siftDown(0)
}

func (h *boundedTopK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.entries[parent].metric <= h.entries[i].metric {
			break
		}
		h.entries[parent], h.entries[i] = h.entries[i], h.entries[parent]
		i = parent
	}
}

func (h *boundedTopK) siftDown(i int) {
	n := len(h.entries)
	for {
		smallest := i
		for _, child := range []int{2*i + 1, 2*i + 2} {
			if child < n && h.entries[child].metric < h.entries[smallest].metric {
				smallest = child
			}
		}
		if smallest == i {
			break
		}
		h.entries[i], h.entries[smallest] = h.entries[smallest], h.entries[i]
		i = smallest
	}
}

func (s *Sampler) topKByCPU(k int) []heapEntry {
	heap := boundedTopK{k: k}
	for pid, rec := range s.pidIndex {
		heap.push(heapEntry{metric: rec.CPUPercent, pid: pid})
	}

	return heap.entries
}

func (s *Sampler) topKByMemory(k int) []heapEntry {
	heap := boundedTopK{k: k}
	for pid, rec := range s.pidIndex {
		heap.push(heapEntry{metric: float64(rec.RSSKb), pid: pid})
	}

	return heap.entries
}

func (s *Sampler) prefetchHeavyForTopK(topCPU, topMem []heapEntry, budget int) {
	candidates := make(map[int64]struct{}, len(topCPU)+len(topMem))
	for _, e := range topCPU {
		candidates[e.pid] = struct{}{}
	}
	for _, e := range topMem {
		candidates[e.pid] = struct{}{}
	}

	used := 0
	for pid := range candidates {
		if used >= budget {
			break
		}
		if s.heavy.contains(pid) {
			continue
		}
		if _, ok := s.pidIndex[pid]; !ok {
			continue
		}
		s.heavy.put(pid, s.fetchHeavyDetails(pid))
		used++
	}
}
