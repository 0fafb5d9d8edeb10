// Package patchertest provides an in-memory patcher.System with fault
// injection for tests.
package patchertest

import (
	"errors"
	"strings"
	"sync"
	"syscall"

	"github.com/blackwell-systems/themetool/internal/patcher"
)

// ErrNotFound is returned for absent values and files. It matches
// fs.ErrNotExist through errors.Is.
var ErrNotFound = syscall.Errno(2)

// ErrAccessDenied is a convenient injected failure.
var ErrAccessDenied = syscall.Errno(5)

// RegOp names a registry operation for fault injection.
type RegOp string

const (
	GetFlag    RegOp = "get-flag"
	SetFlag    RegOp = "set-flag"
	DeleteFlag RegOp = "delete-flag"
	GetDlls    RegOp = "get-dlls"
	SetDlls    RegOp = "set-dlls"
	DeleteDlls RegOp = "delete-dlls"
)

// Fault is an injected failure. When Apply is set the operation takes effect
// and still reports Err.
type Fault struct {
	Err   error
	Apply bool
}

type entry struct {
	flag    uint32
	hasFlag bool
	dlls    string
	hasDlls bool
}

// Registry is an in-memory patcher.Registry keyed case-insensitively.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	faults  map[string]Fault
	calls   []string

	// AfterFlagWrite, when set, runs after every SetGlobalFlag or
	// DeleteGlobalFlag call, outside the registry lock. It simulates a
	// concurrent writer.
	AfterFlagWrite func(t patcher.Target)
}

func key(t patcher.Target) string { return strings.ToLower(string(t)) }

func (r *Registry) lookup(t patcher.Target) *entry {
	if r.entries == nil {
		r.entries = make(map[string]*entry)
	}
	e, ok := r.entries[key(t)]
	if !ok {
		e = &entry{}
		r.entries[key(t)] = e
	}
	return e
}

// Fail injects a fault for op on target t.
func (r *Registry) Fail(op RegOp, t patcher.Target, f Fault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.faults == nil {
		r.faults = make(map[string]Fault)
	}
	r.faults[string(op)+":"+key(t)] = f
}

// ClearFaults removes every injected fault.
func (r *Registry) ClearFaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = nil
}

func (r *Registry) fault(op RegOp, t patcher.Target) (Fault, bool) {
	r.calls = append(r.calls, string(op)+":"+string(t))
	f, ok := r.faults[string(op)+":"+key(t)]
	return f, ok
}

// Calls returns the operations performed so far as "op:target" strings.
func (r *Registry) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Seed sets the GlobalFlag and, when dlls is non-empty, VerifierDlls of t.
func (r *Registry) Seed(t patcher.Target, flag uint32, dlls string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.lookup(t)
	e.flag, e.hasFlag = flag, true
	if dlls != "" {
		e.dlls, e.hasDlls = dlls, true
	}
}

// Entry returns the stored values of t.
func (r *Registry) Entry(t patcher.Target) patcher.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.lookup(t)
	return patcher.Entry{Target: t, GlobalFlag: e.flag, HasFlag: e.hasFlag, VerifierDlls: e.dlls, HasVerifier: e.hasDlls}
}

func (r *Registry) GlobalFlag(t patcher.Target) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fault(GetFlag, t); ok {
		return 0, f.Err
	}
	e := r.lookup(t)
	if !e.hasFlag {
		return 0, ErrNotFound
	}
	return e.flag, nil
}

func (r *Registry) SetGlobalFlag(t patcher.Target, v uint32) error {
	err := r.mutate(SetFlag, t, func(e *entry) error {
		e.flag, e.hasFlag = v, true
		return nil
	})
	if r.AfterFlagWrite != nil {
		r.AfterFlagWrite(t)
	}
	return err
}

func (r *Registry) DeleteGlobalFlag(t patcher.Target) error {
	err := r.mutate(DeleteFlag, t, func(e *entry) error {
		if !e.hasFlag {
			return ErrNotFound
		}
		e.flag, e.hasFlag = 0, false
		return nil
	})
	if r.AfterFlagWrite != nil {
		r.AfterFlagWrite(t)
	}
	return err
}

func (r *Registry) VerifierDlls(t patcher.Target) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fault(GetDlls, t); ok {
		return "", f.Err
	}
	e := r.lookup(t)
	if !e.hasDlls {
		return "", ErrNotFound
	}
	return e.dlls, nil
}

func (r *Registry) SetVerifierDlls(t patcher.Target, v string) error {
	return r.mutate(SetDlls, t, func(e *entry) error {
		e.dlls, e.hasDlls = v, true
		return nil
	})
}

func (r *Registry) DeleteVerifierDlls(t patcher.Target) error {
	return r.mutate(DeleteDlls, t, func(e *entry) error {
		if !e.hasDlls {
			return ErrNotFound
		}
		e.dlls, e.hasDlls = "", false
		return nil
	})
}

func (r *Registry) mutate(op RegOp, t patcher.Target, apply func(*entry) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, faulted := r.fault(op, t)
	if faulted && !f.Apply {
		return f.Err
	}
	err := apply(r.lookup(t))
	if faulted {
		return f.Err
	}
	return err
}

// Files is an in-memory patcher.Files.
type Files struct {
	mu     sync.Mutex
	data   map[string][]byte
	faults map[string]error
}

// FileOp names a file operation for fault injection.
type FileOp string

const (
	ReadOp   FileOp = "read"
	WriteOp  FileOp = "write"
	RemoveOp FileOp = "remove"
)

// Fail injects err for op on path.
func (f *Files) Fail(op FileOp, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faults == nil {
		f.faults = make(map[string]error)
	}
	f.faults[string(op)+":"+path] = err
}

// ClearFaults removes every injected fault.
func (f *Files) ClearFaults() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = nil
}

// Put stores data at path.
func (f *Files) Put(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[path] = append([]byte(nil), data...)
}

// Get returns the data at path.
func (f *Files) Get(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[path]
	return d, ok
}

func (f *Files) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.faults[string(ReadOp)+":"+path]; err != nil {
		return nil, err
	}
	d, ok := f.data[path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), d...), nil
}

func (f *Files) WriteFile(path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.faults[string(WriteOp)+":"+path]; err != nil {
		return err
	}
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[path] = append([]byte(nil), data...)
	return nil
}

func (f *Files) ForceRemove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.faults[string(RemoveOp)+":"+path]; err != nil {
		return err
	}
	delete(f.data, path)
	return nil
}

// Signal is an in-memory patcher.Signal.
type Signal struct {
	mu     sync.Mutex
	counts map[string]int
}

// Set sets the count of name.
func (s *Signal) Set(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[name] = n
}

func (s *Signal) Count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// Guard records how often it is entered and released.
type Guard struct {
	mu       sync.Mutex
	Err      error
	entered  int
	released int
}

func (g *Guard) Enter() (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.entered++
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.released++
			g.mu.Unlock()
		})
	}, nil
}

// Held returns the number of acquisitions not yet released.
func (g *Guard) Held() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entered - g.released
}

// Entered returns the number of successful acquisitions.
func (g *Guard) Entered() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.entered
}

// Power records reboot requests.
type Power struct {
	PrivilegeErr error
	RebootErr    error
	Rebooted     bool
}

func (p *Power) EnableShutdownPrivilege() error { return p.PrivilegeErr }

func (p *Power) Reboot() error {
	if p.RebootErr != nil {
		return p.RebootErr
	}
	p.Rebooted = true
	return nil
}

// Prompter answers reboot prompts with Answer.
type Prompter struct {
	Answer bool
	Asked  int
}

func (p *Prompter) ConfirmReboot() bool {
	p.Asked++
	return p.Answer
}

// System is a complete fake machine.
type System struct {
	Registry *Registry
	Files    *Files
	Signal   *Signal
	Guard    *Guard
	Power    *Power
}

// New returns an empty fake machine: no IFEO entries, no shim file and an
// activity count of zero.
func New() *System {
	return &System{
		Registry: &Registry{},
		Files:    &Files{},
		Signal:   &Signal{},
		Guard:    &Guard{},
		Power:    &Power{},
	}
}

// System returns the fake as a patcher.System.
func (s *System) System() patcher.System {
	return patcher.System{
		Registry: s.Registry,
		Files:    s.Files,
		Signal:   s.Signal,
		Guard:    s.Guard,
		Power:    s.Power,
	}
}

// ErrInjected is a generic injected failure.
var ErrInjected = errors.New("injected failure")
