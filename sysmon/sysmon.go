package sysmon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"

	"github.com/00PrabalK00/RosScope/pkg/executor"
)

const probeTimeout = 2500 * time.Millisecond

type CPUStat struct {
	UsagePercent float64 `json:"usage_percent"`
}

type MemoryStat struct {
	TotalKb     uint64  `json:"total_kb"`
	UsedKb      uint64  `json:"used_kb"`
	AvailableKb uint64  `json:"available_kb"`
	UsedPercent float64 `json:"used_percent"`
}

type DiskStat struct {
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

type GPU struct {
	Name               string  `json:"name"`
	UtilizationPercent float64 `json:"utilization_percent"`
	MemoryUsedMb       float64 `json:"memory_used_mb"`
	MemoryTotalMb      float64 `json:"memory_total_mb"`
}

type NetworkInterface struct {
	Name      string   `json:"name"`
	IsUp      bool     `json:"is_up"`
	IsRunning bool     `json:"is_running"`
	Addresses []string `json:"addresses"`
	RxBytes   uint64   `json:"rx_bytes"`
	TxBytes   uint64   `json:"tx_bytes"`
}

type Snapshot struct {
	CPU               CPUStat            `json:"cpu"`
	Memory            MemoryStat         `json:"memory"`
	Disk              DiskStat           `json:"disk"`
	GPUs              []GPU              `json:"gpus"`
	USBDevices        []string           `json:"usb_devices"`
	SerialPorts       []string           `json:"serial_ports"`
	CANInterfaces     []string           `json:"can_interfaces"`
	NetworkInterfaces []NetworkInterface `json:"network_interfaces"`
}

// Monitor collects a host snapshot. Missing tools degrade to empty arrays and
// never error upwards.
type Monitor struct {
	runner   executor.Runner
	procRoot string
	devRoot  string
	sysNet   string

	previousCPUTotal uint64
	previousCPUIdle  uint64
	firstCPUSample   bool
}

type Option func(*Monitor)

func WithProcRoot(root string) Option {
	return func(m *Monitor) { m.procRoot = root }
}

func WithDevRoot(root string) Option {
	return func(m *Monitor) { m.devRoot = root }
}

func WithSysNetRoot(root string) Option {
	return func(m *Monitor) { m.sysNet = root }
}

func New(runner executor.Runner, opts ...Option) *Monitor {
	m := &Monitor{
		runner:         runner,
		procRoot:       "/proc",
		devRoot:        "/dev",
		sysNet:         "/sys/class/net",
		firstCPUSample: true,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Monitor) parseCPUTimes() (total, idle uint64) {
	b, err := os.ReadFile(filepath.Join(m.procRoot, "stat"))
	if err != nil {
		return 0, 0
	}
	line, _, _ := strings.Cut(string(b), "\n")
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return 0, 0
	}
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		total += v
	}
	idleV, _ := strconv.ParseUint(fields[4], 10, 64)
	iowaitV, _ := strconv.ParseUint(fields[5], 10, 64)

	return total, idleV + iowaitV
}

func (m *Monitor) cpuSnapshot() CPUStat {
	total, idle := m.parseCPUTimes()
	var percent float64
	if !m.firstCPUSample && total > m.previousCPUTotal {
		deltaTotal := total - m.previousCPUTotal
		deltaIdle := idle - m.previousCPUIdle
		percent = 100.0 * (1.0 - float64(deltaIdle)/float64(deltaTotal))
		if percent < 0 {
			percent = 0
		}
	}
	m.previousCPUTotal = total
	m.previousCPUIdle = idle
	m.firstCPUSample = false

	return CPUStat{UsagePercent: percent}
}

func memorySnapshot() MemoryStat {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStat{}
	}

	return MemoryStat{
		TotalKb:     vm.Total / 1024,
		UsedKb:      vm.Used / 1024,
		AvailableKb: vm.Available / 1024,
		UsedPercent: vm.UsedPercent,
	}
}

func diskSnapshot() DiskStat {
	usage, err := disk.Usage("/")
	if err != nil {
		return DiskStat{}
	}

	return DiskStat{
		TotalBytes:  usage.Total,
		UsedBytes:   usage.Used,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}
}

func (m *Monitor) gpuSnapshot(ctx context.Context) []GPU {
	gpus := []GPU{}
	result := m.runner.Run(
		ctx,
		"nvidia-smi",
		[]string{"--query-gpu=name,utilization.gpu,memory.used,memory.total", "--format=csv,noheader,nounits"},
		probeTimeout,
		nil,
	)
	if !result.OK() {
		return gpus
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			continue
		}
		util, _ := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		used, _ := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		total, _ := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		gpus = append(gpus, GPU{
			Name:               strings.TrimSpace(parts[0]),
			UtilizationPercent: util,
			MemoryUsedMb:       used,
			MemoryTotalMb:      total,
		})
	}

	return gpus
}

func (m *Monitor) usbDevices(ctx context.Context) []string {
	devices := []string{}
	result := m.runner.Run(ctx, "lsusb", nil, probeTimeout, nil)
	if !result.OK() {
		return devices
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			devices = append(devices, line)
		}
	}

	return devices
}

func (m *Monitor) serialPorts() []string {
	ports := []string{}
	for _, pattern := range []string{"ttyUSB*", "ttyACM*", "ttyS*", "ttyAMA*"} {
		matches, err := filepath.Glob(filepath.Join(m.devRoot, pattern))
		if err != nil {
			continue
		}
		for _, match := range matches {
			ports = append(ports, "/dev/"+filepath.Base(match))
		}
	}

	return ports
}

func (m *Monitor) canInterfaces(ctx context.Context) []string {
	can := []string{}
	result := m.runner.Run(ctx, "ip", []string{"-details", "-brief", "link", "show", "type", "can"}, probeTimeout, nil)
	if !result.OK() {
		return can
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			can = append(can, line)
		}
	}

	return can
}

func (m *Monitor) readInterfaceBytes(name, counter string) uint64 {
	b, err := os.ReadFile(filepath.Join(m.sysNet, name, "statistics", counter))
	if err != nil {
		return 0
	}
	v, _ := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)

	return v
}

func (m *Monitor) networkInterfaces() []NetworkInterface {
	interfaces := []NetworkInterface{}
	all, err := gopsnet.Interfaces()
	if err != nil {
		return interfaces
	}
	for _, iface := range all {
		row := NetworkInterface{
			Name:      iface.Name,
			Addresses: []string{},
			RxBytes:   m.readInterfaceBytes(iface.Name, "rx_bytes"),
			TxBytes:   m.readInterfaceBytes(iface.Name, "tx_bytes"),
		}
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				row.IsUp = true
			case "running":
				row.IsRunning = true
			}
		}
		for _, addr := range iface.Addrs {
			row.Addresses = append(row.Addresses, addr.Addr)
		}
		interfaces = append(interfaces, row)
	}

	return interfaces
}

// CollectSystem gathers the full host snapshot. CPU percent is a delta
// against the previous call; the first call reports 0.
func (m *Monitor) CollectSystem(ctx context.Context) Snapshot {
	return Snapshot{
		CPU:               m.cpuSnapshot(),
		Memory:            memorySnapshot(),
		Disk:              diskSnapshot(),
		GPUs:              m.gpuSnapshot(ctx),
		USBDevices:        m.usbDevices(ctx),
		SerialPorts:       m.serialPorts(),
		CANInterfaces:     m.canInterfaces(ctx),
		NetworkInterfaces: m.networkInterfaces(),
	}
}

// TailDmesg returns the last lines of the kernel ring buffer.
func (m *Monitor) TailDmesg(ctx context.Context, lines int) string {
	cmd := fmt.Sprintf("dmesg --ctime --color=never | tail -n %d", lines)
	result := m.runner.RunShell(ctx, cmd, 4*time.Second, nil)
	if result.OK() {
		return result.Stdout
	}
	if strings.TrimSpace(result.Stderr) == "" {
		return "dmesg is unavailable."
	}

	return result.Stderr
}
