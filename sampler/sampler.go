package sampler

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/00PrabalK00/RosScope/pkg/telemetry"
)

const (
	minBudget          = 60
	maxBudget          = 900
	defaultBudget      = 240
	topK               = 20
	heavyPrefetchBudget = 4
	maxNameLen         = 64
	maxCmdlineLen      = 320
)

// Record describes one live pid. Records are owned by the sampler; callers
// receive copies.
type Record struct {
	PID             int64   `json:"pid"`
	PPID            int64   `json:"ppid"`
	Name            string  `json:"name"`
	State           string  `json:"state"`
	Executable      string  `json:"executable"`
	CommandLine     string  `json:"command_line"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryPercent   float64 `json:"memory_percent"`
	RSSKb           uint64  `json:"rss_kb"`
	Threads         int     `json:"threads"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	UptimeHuman     string  `json:"uptime_human"`
	DomainID        string  `json:"ros_domain_id"`
	IsROS           bool    `json:"is_ros"`
	NodeName        string  `json:"node_name"`
	Namespace       string  `json:"namespace"`
	Package         string  `json:"package"`
	WorkspaceOrigin string  `json:"workspace_origin"`
	LaunchSource    string  `json:"launch_source"`

	lastSeenTick uint64
}

// Sampler incrementally scans /proc with a bounded per-tick update budget.
// It is owned by a single caller; none of its maps escape by reference.
type Sampler struct {
	procRoot string
	signal   func(pid int64, sig syscall.Signal) error
	tele     *telemetry.Registry

	tick       uint64
	pidIndex   map[int64]*Record
	rrPids     []int64
	rrCursor   int
	budget     int

	clockTicks int64
	cpuCores   int

	prevProcJiffies  map[int64]uint64
	prevTotalJiffies uint64
	tickTotalJiffies uint64
	firstCPUSample   bool

	memTotalKb        uint64
	tickUptimeSeconds float64

	heavy *heavyCache
}

type Option func(*Sampler)

// WithProcRoot points the sampler at an alternate procfs tree.
func WithProcRoot(root string) Option {
	return func(s *Sampler) { s.procRoot = root }
}

// WithSignalFunc replaces the kill(2) call.
func WithSignalFunc(fn func(pid int64, sig syscall.Signal) error) Option {
	return func(s *Sampler) { s.signal = fn }
}

func WithClockTicks(hz int64) Option {
	return func(s *Sampler) { s.clockTicks = hz }
}

func WithCPUCores(n int) Option {
	return func(s *Sampler) { s.cpuCores = n }
}

func New(tele *telemetry.Registry, opts ...Option) *Sampler {
	if tele == nil {
		tele = telemetry.Default()
	}
	s := &Sampler{
		procRoot:        "/proc",
		signal:          func(pid int64, sig syscall.Signal) error { return syscall.Kill(int(pid), sig) },
		tele:            tele,
		pidIndex:        make(map[int64]*Record),
		budget:          defaultBudget,
		prevProcJiffies: make(map[int64]uint64),
		firstCPUSample:  true,
		heavy:           newHeavyCache(maxHeavyCacheEntries),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Sampler) supported() bool {
	return runtime.GOOS == "linux" || s.procRoot != "/proc"
}

func (s *Sampler) pidPath(pid int64) string {
	return filepath.Join(s.procRoot, strconv.FormatInt(pid, 10))
}

func readFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return string(b)
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}

func (s *Sampler) listProcPids() []int64 {
	entries, err := os.ReadDir(s.procRoot)
	if err != nil {
		return nil
	}
	pids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if !isNumeric(entry.Name()) {
			continue
		}
		pid, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err == nil {
			pids = append(pids, pid)
		}
	}

	return pids
}

func (s *Sampler) totalJiffies() uint64 {
	stat := readFile(filepath.Join(s.procRoot, "stat"))
	line, _, _ := strings.Cut(stat, "\n")
	fields := strings.Fields(line)
	if len(fields) < 8 || fields[0] != "cpu" {
		return 0
	}
	var total uint64
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		total += v
	}

	return total
}

func (s *Sampler) memoryTotalKb() uint64 {
	for _, line := range strings.Split(readFile(filepath.Join(s.procRoot, "meminfo")), "\n") {
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			v, _ := strconv.ParseUint(fields[1], 10, 64)

			return v
		}
	}

	return 0
}

func (s *Sampler) systemUptimeSeconds() float64 {
	fields := strings.Fields(readFile(filepath.Join(s.procRoot, "uptime")))
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.ParseFloat(fields[0], 64)

	return v
}

func readStatusFields(pidPath string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(readFile(filepath.Join(pidPath, "status")), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return out
}

func readCmdline(pidPath string) string {
	b, err := os.ReadFile(filepath.Join(pidPath, "cmdline"))
	if err != nil {
		return ""
	}
	for i := range b {
		if b[i] == 0 {
			b[i] = ' '
		}
	}

	return strings.TrimSpace(string(b))
}

func readEnviron(pidPath string) map[string]string {
	env := make(map[string]string)
	b, err := os.ReadFile(filepath.Join(pidPath, "environ"))
	if err != nil {
		return env
	}
	for _, entry := range strings.Split(string(b), "\x00") {
		key, value, ok := strings.Cut(entry, "=")
		if ok && key != "" {
			env[key] = value
		}
	}

	return env
}

func readExePath(pidPath string) string {
	target, err := os.Readlink(filepath.Join(pidPath, "exe"))
	if err != nil {
		return ""
	}

	return target
}

func uptimeString(seconds float64) string {
	if seconds < 0 {
		return "0s"
	}
	sec := int(seconds)
	h := sec / 3600
	m := (sec % 3600) / 60
	rem := sec % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, rem)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, rem)
	default:
		return fmt.Sprintf("%ds", rem)
	}
}

func memoryPercentKb(rssKb, totalKb uint64) float64 {
	if totalKb == 0 {
		return 0
	}

	return 100.0 * float64(rssKb) / float64(totalKb)
}

// collectLite updates one pid from /proc/<pid>/stat and status. Missing files
// mean the pid raced away and are skipped silently.
func (s *Sampler) collectLite(pid int64, deep bool) bool {
	pidPath := s.pidPath(pid)
	statLine := readFile(filepath.Join(pidPath, "stat"))
	if statLine == "" {
		return false
	}
	lp := strings.IndexByte(statLine, '(')
	rp := strings.LastIndexByte(statLine, ')')
	if lp < 0 || rp < 0 || rp <= lp {
		return false
	}

	rec, ok := s.pidIndex[pid]
	if !ok {
		rec = &Record{PID: pid}
		s.pidIndex[pid] = rec
	}
	name := statLine[lp+1 : rp]
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	rec.Name = name

	fields := strings.Fields(strings.TrimSpace(statLine[rp+1:]))
	if len(fields) < 20 {
		return false
	}
	rec.State = fields[0]
	rec.PPID, _ = strconv.ParseInt(fields[1], 10, 64)
	threads, _ := strconv.Atoi(fields[17])
	rec.Threads = threads
	utime, _ := strconv.ParseUint(fields[11], 10, 64)
	stime, _ := strconv.ParseUint(fields[12], 10, 64)
	starttimeTicks, _ := strconv.ParseUint(fields[19], 10, 64)
	procJiffies := utime + stime

	deltaTotal := s.tickTotalJiffies - s.prevTotalJiffies
	prev, seen := s.prevProcJiffies[pid]
	if !s.firstCPUSample && deltaTotal > 0 && seen && procJiffies >= prev {
		rec.CPUPercent = 100.0 * float64(procJiffies-prev) * float64(s.cpuCores) / float64(deltaTotal)
		if rec.CPUPercent < 0 {
			rec.CPUPercent = 0
		}
	} else {
		rec.CPUPercent = 0
	}
	s.prevProcJiffies[pid] = procJiffies

	status := readStatusFields(pidPath)
	rssFields := strings.Fields(status["VmRSS"])
	if len(rssFields) > 0 {
		rec.RSSKb, _ = strconv.ParseUint(rssFields[0], 10, 64)
	}
	rec.MemoryPercent = memoryPercentKb(rec.RSSKb, s.memTotalKb)
	if s.clockTicks > 0 {
		rec.UptimeSeconds = s.tickUptimeSeconds - float64(starttimeTicks)/float64(s.clockTicks)
	}
	rec.UptimeHuman = uptimeString(rec.UptimeSeconds)

	if deep {
		cmdline := readCmdline(pidPath)
		if len(cmdline) > maxCmdlineLen {
			cmdline = cmdline[:maxCmdlineLen]
		}
		rec.CommandLine = cmdline
		rec.Executable = readExePath(pidPath)
		env := readEnviron(pidPath)
		rec.DomainID = env["ROS_DOMAIN_ID"]
		if rec.DomainID == "" {
			rec.DomainID = "0"
		}
		rec.IsROS = isRosProcess(pidPath, rec.Executable, rec.CommandLine, env)
		rec.NodeName = detectNodeName(rec.CommandLine)
		rec.Namespace = detectNamespace(rec.CommandLine)
		rec.WorkspaceOrigin = detectWorkspaceOrigin(rec.Executable, env)
		rec.Package = detectPackage(rec.Executable, rec.CommandLine)
		rec.LaunchSource = detectLaunchSource(rec.CommandLine)
	} else {
		rec.CommandLine = ""
		rec.Executable = ""
		rec.DomainID = "0"
		rec.IsROS = false
		rec.NodeName = ""
		rec.Namespace = "/"
		rec.WorkspaceOrigin = ""
		rec.Package = ""
		rec.LaunchSource = ""
	}

	rec.lastSeenTick = s.tick

	return true
}

// Refresh runs one incremental sampling tick.
func (s *Sampler) Refresh(deep bool) {
	if !s.supported() {
		return
	}
	s.tick++
	if s.clockTicks <= 0 {
		s.clockTicks = 100
	}
	if s.cpuCores <= 0 {
		s.cpuCores = runtime.NumCPU()
		if s.cpuCores < 1 {
			s.cpuCores = 1
		}
	}

	currentTotalJiffies := s.totalJiffies()
	s.memTotalKb = s.memoryTotalKb()
	s.tickTotalJiffies = currentTotalJiffies
	s.tickUptimeSeconds = s.systemUptimeSeconds()

	for _, pid := range s.listProcPids() {
		rec, ok := s.pidIndex[pid]
		if !ok {
			rec = &Record{PID: pid, Namespace: "/", DomainID: "0"}
			s.pidIndex[pid] = rec
			s.rrPids = append(s.rrPids, pid)
		}
		rec.lastSeenTick = s.tick
	}

	updated := 0
	attempts := 0
	for updated < s.budget && len(s.rrPids) > 0 && attempts < len(s.rrPids) {
		if s.rrCursor >= len(s.rrPids) {
			s.rrCursor = 0
		}
		pid := s.rrPids[s.rrCursor]
		s.rrCursor++
		attempts++
		if _, ok := s.pidIndex[pid]; !ok {
			continue
		}
		if s.collectLite(pid, deep) {
			updated++
		}
	}

	// Purge pids that vanished from /proc this tick along with their
	// shadow state (I1/I2).
	for pid, rec := range s.pidIndex {
		if rec.lastSeenTick != s.tick {
			delete(s.pidIndex, pid)
			delete(s.prevProcJiffies, pid)
			s.heavy.remove(pid)
		}
	}
	live := s.rrPids[:0]
	for _, pid := range s.rrPids {
		if _, ok := s.pidIndex[pid]; ok {
			live = append(live, pid)
		}
	}
	s.rrPids = live
	if s.rrCursor >= len(s.rrPids) {
		s.rrCursor = 0
	}

	s.prefetchHeavyForTopK(s.topKByCPU(topK), s.topKByMemory(topK), heavyPrefetchBudget)

	deltaTotal := int64(currentTotalJiffies) - int64(s.prevTotalJiffies)
	s.prevTotalJiffies = currentTotalJiffies
	s.firstCPUSample = false

	if deltaTotal <= 0 || updated < s.budget/2 {
		s.budget = int(float64(s.budget) * 0.85)
		if s.budget < minBudget {
			s.budget = minBudget
		}
	} else {
		s.budget += 12
		if s.budget > maxBudget {
			s.budget = maxBudget
		}
	}
}

func (s *Sampler) matches(rec *Record, rosOnly bool, queryLower string) bool {
	if rosOnly && !rec.IsROS {
		return false
	}
	if queryLower == "" {
		return true
	}
	searchable := strings.ToLower(
		strconv.FormatInt(rec.PID, 10) + " " + rec.Name + " " + rec.Executable + " " + rec.CommandLine)

	return strings.Contains(searchable, queryLower)
}

// ListProcesses refreshes one tick and returns matching records sorted by
// descending CPU.
func (s *Sampler) ListProcesses(rosOnly bool, query string, deep bool) []Record {
	if !s.supported() {
		return nil
	}
	begin := time.Now()
	s.Refresh(deep)
	queryLower := strings.ToLower(strings.TrimSpace(query))

	rows := make([]Record, 0, len(s.pidIndex))
	for _, rec := range s.pidIndex {
		if s.matches(rec, rosOnly, queryLower) {
			rows = append(rows, *rec)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CPUPercent != rows[j].CPUPercent {
			return rows[i].CPUPercent > rows[j].CPUPercent
		}

		return rows[i].PID < rows[j].PID
	})

	s.tele.IncrementCounter("process.list_queries", 1)
	s.tele.SetGauge("process.last_result_size", float64(len(rows)))
	s.tele.SetGauge("process.budget_per_tick", float64(s.budget))
	s.tele.SetGauge("process.cache.heavy_size", float64(s.heavy.len()))
	s.tele.RecordDurationMs("process.query_ms", time.Since(begin).Milliseconds())

	return rows
}

// ListProcessesPaged pages through the filtered set. With sortByCPU false it
// walks the pids in ascending order and copies only the records of the
// requested page; the full record set is not materialized or sorted.
func (s *Sampler) ListProcessesPaged(rosOnly bool, query string, deep bool, offset, limit int, sortByCPU bool) ([]Record, int) {
	if !s.supported() {
		return nil, 0
	}
	begin := time.Now()
	s.Refresh(deep)
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}

	var rows []Record
	total := 0
	if !sortByCPU {
		pids := make([]int64, 0, len(s.pidIndex))
		for pid := range s.pidIndex {
			pids = append(pids, pid)
		}
		sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
		end := offset + limit
		for _, pid := range pids {
			rec := s.pidIndex[pid]
			if !s.matches(rec, rosOnly, queryLower) {
				continue
			}
			if total >= offset && total < end {
				rows = append(rows, *rec)
			}
			total++
		}
	} else {
		filtered := make([]Record, 0, len(s.pidIndex))
		for _, rec := range s.pidIndex {
			if s.matches(rec, rosOnly, queryLower) {
				filtered = append(filtered, *rec)
			}
		}
		total = len(filtered)
		sort.Slice(filtered, func(i, j int) bool {
			if filtered[i].CPUPercent != filtered[j].CPUPercent {
				return filtered[i].CPUPercent > filtered[j].CPUPercent
			}

			return filtered[i].PID < filtered[j].PID
		})
		end := offset + limit
		if end > total {
			end = total
		}
		if offset < end {
			rows = append(rows, filtered[offset:end]...)
		}
	}

	s.tele.IncrementCounter("process.list_paged_queries", 1)
	s.tele.SetGauge("process.last_result_size", float64(len(rows)))
	s.tele.SetGauge("process.last_total_filtered", float64(total))
	s.tele.RecordDurationMs("process.query_ms", time.Since(begin).Milliseconds())

	return rows, total
}

func (s *Sampler) Terminate(pid int64) bool {
	if !s.supported() {
		return false
	}

	return s.signal(pid, syscall.SIGTERM) == nil
}

func (s *Sampler) ForceKill(pid int64) bool {
	if !s.supported() {
		return false
	}

	return s.signal(pid, syscall.SIGKILL) == nil
}

func (s *Sampler) listChildren(parent int64) []int64 {
	var children []int64
	for _, pid := range s.listProcPids() {
		statLine := readFile(filepath.Join(s.pidPath(pid), "stat"))
		rp := strings.LastIndexByte(statLine, ')')
		if rp < 0 || rp+2 >= len(statLine) {
			continue
		}
		fields := strings.Fields(statLine[rp+2:])
		if len(fields) < 2 {
			continue
		}
		ppid, err := strconv.ParseInt(fields[1], 10, 64)
		if err == nil && ppid == parent {
			children = append(children, pid)
		}
	}

	return children
}

func (s *Sampler) collectDescendants(pid int64, out map[int64]struct{}) {
	for _, child := range s.listChildren(pid) {
		if _, ok := out[child]; ok {
			continue
		}
		out[child] = struct{}{}
		s.collectDescendants(child, out)
	}
}

// KillProcessTree signals every transitive descendant of pid plus pid itself.
func (s *Sampler) KillProcessTree(pid int64, force bool) bool {
	if !s.supported() {
		return false
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}

	descendants := make(map[int64]struct{})
	s.collectDescendants(pid, descendants)

	success := true
	for child := range descendants {
		if s.signal(child, sig) != nil {
			success = false
		}
	}
	if s.signal(pid, sig) != nil {
		success = false
	}

	return success
}

// Budget reports the current adaptive per-tick update budget.
func (s *Sampler) Budget() int {
	return s.budget
}
