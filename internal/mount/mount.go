// Package mount attaches the root filesystem at a fixed mount point so
// system subvolumes can be reached, and detaches it again.
package mount

import (
	"context"
	"os"
	"sync"

	"github.com/juju/errors"
	"github.com/moby/sys/mountinfo"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
	"github.com/raoulx24/wandering-echo/internal/logging"
)

// Primitive is the host mount tooling.
type Primitive interface {
	RootUUID(ctx context.Context) (string, error)
	MountByUUID(ctx context.Context, uuid, mountPoint string) error
	Unmount(ctx context.Context, mountPoint string) error
}

// Manager mounts at most once and only unmounts what it mounted itself.
type Manager struct {
	mountPoint string
	prim       Primitive
	log        logging.Logger
	mounted    func(path string) (bool, error)

	mu   sync.Mutex
	flag bool
}

func NewManager(mountPoint string, prim Primitive, log logging.Logger) *Manager {
	return &Manager{
		mountPoint: mountPoint,
		prim:       prim,
		log:        log,
		mounted:    mountinfo.Mounted,
	}
}

func (m *Manager) MountPoint() string { return m.mountPoint }

// Mounted reports whether this manager holds the mount.
func (m *Manager) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flag
}

// Mount attaches the root filesystem. Calling it again is a no-op. If
// something else already mounted the mount point it is used as is and left
// mounted afterwards.
func (m *Manager) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flag {
		return nil
	}

	if err := os.MkdirAll(m.mountPoint, 0o755); err != nil {
		return echoerrors.Mark(errors.Annotatef(err, "creating mount point %s", m.mountPoint), echoerrors.IOFailure)
	}
	already, err := m.mounted(m.mountPoint)
	if err != nil {
		return echoerrors.Mark(errors.Annotatef(err, "inspecting %s", m.mountPoint), echoerrors.IOFailure)
	}
	if already {
		m.log.Info("mount point already in use, leaving it as is", "mountPoint", m.mountPoint)
		return nil
	}

	uuid, err := m.prim.RootUUID(ctx)
	if err != nil {
		return echoerrors.Mark(errors.Annotate(err, "looking up root filesystem"), echoerrors.IOFailure)
	}
	if err := m.prim.MountByUUID(ctx, uuid, m.mountPoint); err != nil {
		return echoerrors.Mark(errors.Annotatef(err, "mounting %s at %s", uuid, m.mountPoint), echoerrors.IOFailure)
	}
	m.flag = true
	m.log.Info("root filesystem mounted", "uuid", uuid, "mountPoint", m.mountPoint)
	return nil
}

// Unmount detaches the mount if this manager made it. It is always safe to
// call.
func (m *Manager) Unmount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.flag {
		return nil
	}
	if err := m.prim.Unmount(ctx, m.mountPoint); err != nil {
		return echoerrors.Mark(errors.Annotatef(err, "unmounting %s", m.mountPoint), echoerrors.IOFailure)
	}
	m.flag = false
	m.log.Info("root filesystem unmounted", "mountPoint", m.mountPoint)
	return nil
}
