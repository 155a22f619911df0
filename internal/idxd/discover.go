// Package idxd discovers DSA devices and work queues from the sysfs tree the
// Linux idxd driver publishes
package idxd

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ehrlich-b/go-dsa/internal/constants"
	"github.com/ehrlich-b/go-dsa/internal/dsaerr"
	"github.com/ehrlich-b/go-dsa/internal/logging"
	"github.com/ehrlich-b/go-dsa/internal/uapi"
)

// Discoverer reads device and queue state. The roots are fields so tests can
// point them at a fake tree.
type Discoverer struct {
	SysfsRoot string
	DevRoot   string
	Logger    *logging.Logger
}

// NewDiscoverer returns a Discoverer for the standard locations
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		SysfsRoot: constants.SysfsDSAPath,
		DevRoot:   constants.DevDSAPath,
	}
}

func (d *Discoverer) logger() *logging.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logging.Default()
}

// Available reports whether the idxd driver is loaded
func (d *Discoverer) Available() bool {
	_, err := os.Stat(d.SysfsRoot)
	return err == nil
}

// Configured reports whether any user work queue device nodes exist
func (d *Discoverer) Configured() bool {
	_, err := os.Stat(d.DevRoot)
	return err == nil
}

// Devices lists DSA devices in index order with their work queues
func (d *Discoverer) Devices() ([]Device, error) {
	entries, err := os.ReadDir(d.SysfsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dsaerr.New("discover", dsaerr.CodePlatformNotSupported,
				"idxd sysfs tree not found at "+d.SysfsRoot)
		}
		return nil, dsaerr.Wrap("discover", err)
	}

	var devices []Device
	queues := make(map[string][]WorkQueueInfo)
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "dsa") && !strings.Contains(name, "."):
			if _, ok := parseIndex(name, "dsa"); !ok {
				continue
			}
			devices = append(devices, Device{
				Name:      name,
				SysfsPath: filepath.Join(d.SysfsRoot, name),
			})
		case strings.HasPrefix(name, "wq"):
			devIdx, _, ok := parseQueueName(name)
			if !ok {
				continue
			}
			owner := "dsa" + strconv.Itoa(devIdx)
			queues[owner] = append(queues[owner], d.readQueue(owner, name))
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		a, _ := parseIndex(devices[i].Name, "dsa")
		b, _ := parseIndex(devices[j].Name, "dsa")
		return a < b
	})
	for i := range devices {
		wqs := queues[devices[i].Name]
		sort.Slice(wqs, func(a, b int) bool {
			_, x, _ := parseQueueName(wqs[a].Name)
			_, y, _ := parseQueueName(wqs[b].Name)
			return x < y
		})
		devices[i].WorkQueues = wqs
	}
	return devices, nil
}

// FirstEnabled returns the first usable queue across all devices
func (d *Discoverer) FirstEnabled() (*WorkQueueInfo, error) {
	devices, err := d.Devices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, dsaerr.New("discover", dsaerr.CodeNoDeviceFound, "no DSA devices present")
	}
	for i := range devices {
		if wq, err := devices[i].FirstEnabled(); err == nil {
			return wq, nil
		}
	}
	return nil, dsaerr.New("discover", dsaerr.CodeNoWorkQueue, "no enabled work queue")
}

// Lookup returns the queue with the given name, e.g. "wq0.1"
func (d *Discoverer) Lookup(name string) (*WorkQueueInfo, error) {
	devIdx, _, ok := parseQueueName(name)
	if !ok {
		return nil, dsaerr.InvalidArgument("discover", "malformed work queue name "+strconv.Quote(name))
	}
	if _, err := os.Stat(filepath.Join(d.SysfsRoot, name)); err != nil {
		if !d.Available() {
			return nil, dsaerr.New("discover", dsaerr.CodePlatformNotSupported,
				"idxd sysfs tree not found at "+d.SysfsRoot)
		}
		return nil, dsaerr.Wrap("discover", err)
	}
	wq := d.readQueue("dsa"+strconv.Itoa(devIdx), name)
	return &wq, nil
}

// FirstEnabled returns the first enabled queue whose device node exists
func (dev *Device) FirstEnabled() (*WorkQueueInfo, error) {
	for i := range dev.WorkQueues {
		if dev.WorkQueues[i].Enabled() {
			return &dev.WorkQueues[i], nil
		}
	}
	return nil, dsaerr.New("discover", dsaerr.CodeNoWorkQueue,
		"no enabled work queue on "+dev.Name)
}

func (d *Discoverer) readQueue(device, name string) WorkQueueInfo {
	dir := filepath.Join(d.SysfsRoot, name)
	wq := WorkQueueInfo{
		Name:            name,
		Device:          device,
		State:           readString(dir, "state", "unknown"),
		Type:            readString(dir, "type", ""),
		Size:            uint32(readUint(dir, "size", 32)),
		Threshold:       uint32(readUint(dir, "threshold", 32)),
		MaxTransferSize: readUint(dir, "max_transfer_size", 64),
		BlockOnFault:    readUint(dir, "block_on_fault", 8) != 0,
	}

	modeStr := readString(dir, "mode", "")
	mode, ok := uapi.ParseWQMode(modeStr)
	if !ok {
		d.logger().Debug("unrecognised work queue mode, assuming shared",
			"wq", name, "mode", modeStr)
	}
	wq.Mode = mode

	node := filepath.Join(d.DevRoot, name)
	if _, err := os.Stat(node); err == nil {
		wq.DevicePath = node
	} else if wq.State == StateEnabled {
		d.logger().Debug("enabled work queue has no device node", "wq", name, "path", node)
	}
	return wq
}

func readString(dir, attr, fallback string) string {
	b, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return fallback
	}
	return strings.TrimSpace(string(b))
}

func readUint(dir, attr string, bits int) uint64 {
	v, err := strconv.ParseUint(readString(dir, attr, ""), 0, bits)
	if err != nil {
		return 0
	}
	return v
}

func parseIndex(name, prefix string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseQueueName splits "wqD.Q" into its device and queue indexes
func parseQueueName(name string) (dev, queue int, ok bool) {
	devPart, queuePart, found := strings.Cut(strings.TrimPrefix(name, "wq"), ".")
	if !found || !strings.HasPrefix(name, "wq") {
		return 0, 0, false
	}
	dev, err1 := strconv.Atoi(devPart)
	queue, err2 := strconv.Atoi(queuePart)
	if err1 != nil || err2 != nil || dev < 0 || queue < 0 {
		return 0, 0, false
	}
	return dev, queue, true
}
