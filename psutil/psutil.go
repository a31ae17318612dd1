// Package psutil reports the resource usage of the host and of the relay
// process.
package psutil

import (
	"context"
	"os"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Info is a snapshot of the current resource usage.
type Info struct {
	NCPU     float64 // number of logical cores
	CPU      float64 // load of the host, 0-100*ncpu
	CPUProc  float64 // load of this process, 0-100*ncpu
	MemTotal uint64  // bytes
	MemUsed  uint64  // bytes
	MemProc  uint64  // resident bytes of this process
}

type Util interface {
	// Info returns the current resource usage.
	Info(ctx context.Context) (Info, error)
}

type util struct {
	ncpu float64
	proc *process.Process
	lock sync.Mutex
}

// New returns a Util for the current process.
func New() (Util, error) {
	u := &util{}

	ncpu, err := cpu.Counts(true)
	if err != nil {
		return nil, err
	}

	if ncpu <= 0 {
		ncpu = 1
	}

	u.ncpu = float64(ncpu)

	u.proc, err = process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	return u, nil
}

func (u *util) Info(ctx context.Context) (Info, error) {
	u.lock.Lock()
	defer u.lock.Unlock()

	info := Info{
		NCPU: u.ncpu,
	}

	// Without an interval the load is measured since the previous call
	load, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return info, err
	}

	if len(load) != 0 {
		info.CPU = load[0] * u.ncpu
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return info, err
	}

	info.MemTotal = vmem.Total
	info.MemUsed = vmem.Total - vmem.Available

	info.CPUProc, err = u.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return info, err
	}

	meminfo, err := u.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return info, err
	}

	info.MemProc = meminfo.RSS

	return info, nil
}
