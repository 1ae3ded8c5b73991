//go:build linux

// Package epoll implements the Linux aml.Backend, grounded in the
// original's src/epoll.c: an epoll instance for readiness, a timerfd for
// the next armed deadline, and a signalfd for signal delivery — all three
// multiplexed through a single epoll_wait call rather than three separate
// waits.
package epoll

import (
	"fmt"
	"syscall"
	"time"

	"github.com/aml-go/aml"
	"golang.org/x/sys/unix"
)

func init() {
	aml.RegisterBackend("epoll", New)
}

type backend struct {
	epfd     int
	timerfd  int
	sigfd    int
	sigmask  unix.Sigset_t
	handlers map[int32]*aml.Handler
	signals  map[int32]*aml.Signal
}

// New constructs the epoll backend. It is registered under the name
// "epoll" and is selected automatically on linux unless AML_BACKEND names
// something else.
func New() (aml.Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll: epoll_create1: %w", err)
	}

	timerfd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll: timerfd_create: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, timerfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(timerfd),
	}); err != nil {
		unix.Close(timerfd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll: epoll_ctl(timerfd): %w", err)
	}

	var empty unix.Sigset_t
	sigfd, err := unix.Signalfd(-1, &empty, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		unix.Close(timerfd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll: signalfd: %w", err)
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, sigfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(sigfd),
	}); err != nil {
		unix.Close(sigfd)
		unix.Close(timerfd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll: epoll_ctl(sigfd): %w", err)
	}

	return &backend{
		epfd:     epfd,
		timerfd:  timerfd,
		sigfd:    sigfd,
		handlers: make(map[int32]*aml.Handler),
		signals:  make(map[int32]*aml.Signal),
	}, nil
}

func eventsFor(mask aml.Event) uint32 {
	var e uint32
	if mask&aml.EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if mask&aml.EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	if mask&aml.EventOOB != 0 {
		e |= unix.EPOLLPRI
	}
	return e
}

func (b *backend) AddFD(h *aml.Handler) error {
	fd := int32(h.FD())
	b.handlers[fd] = h
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, int(fd), &unix.EpollEvent{
		Events: eventsFor(h.EventMask()),
		Fd:     fd,
	})
}

func (b *backend) ModFD(h *aml.Handler) error {
	fd := int32(h.FD())
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, int(fd), &unix.EpollEvent{
		Events: eventsFor(h.EventMask()),
		Fd:     fd,
	})
}

func (b *backend) DelFD(h *aml.Handler) error {
	fd := int32(h.FD())
	delete(b.handlers, fd)
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

func sigsetAdd(set *unix.Sigset_t, signo int) {
	set.Val[(signo-1)/64] |= 1 << uint((signo-1)%64)
}

func sigsetDel(set *unix.Sigset_t, signo int) {
	set.Val[(signo-1)/64] &^= 1 << uint((signo-1)%64)
}

func signalNumber(s interface{ Signal() }) (int, error) {
	sig, ok := s.(syscall.Signal)
	if !ok {
		return 0, fmt.Errorf("epoll: signal %v is not a syscall.Signal", s)
	}
	return int(sig), nil
}

func (b *backend) AddSignal(s *aml.Signal) error {
	signo, err := signalNumber(s.Signo())
	if err != nil {
		return err
	}
	sigsetAdd(&b.sigmask, signo)
	if _, err := unix.Signalfd(b.sigfd, &b.sigmask, 0); err != nil {
		return err
	}
	single := b.sigmask
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &single, nil); err != nil {
		return err
	}
	b.signals[int32(signo)] = s
	return nil
}

func (b *backend) DelSignal(s *aml.Signal) error {
	signo, err := signalNumber(s.Signo())
	if err != nil {
		return err
	}
	delete(b.signals, int32(signo))
	sigsetDel(&b.sigmask, signo)
	_, err = unix.Signalfd(b.sigfd, &b.sigmask, 0)
	return err
}

func (b *backend) Poll(l *aml.Loop, wait time.Duration) error {
	if err := b.armTimer(wait); err != nil {
		return err
	}

	ms := -1
	if wait >= 0 {
		ms = int(wait / time.Millisecond)
	}

	var events [32]unix.EpollEvent
	n, err := unix.EpollWait(b.epfd, events[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		ev := events[i]
		switch int(ev.Fd) {
		case b.timerfd:
			drainFD(b.timerfd, 8)
		case b.sigfd:
			b.drainSignals(l)
		default:
			if h, ok := b.handlers[ev.Fd]; ok {
				aml.EmitHandlerReady(l, h, revents(ev.Events))
			}
		}
	}
	return nil
}

func (b *backend) drainSignals(l *aml.Loop) {
	var buf [unsafeSizeofSiginfo]byte
	for {
		n, err := unix.Read(b.sigfd, buf[:])
		if n <= 0 || err != nil {
			return
		}
		info := decodeSiginfo(buf[:n])
		if s, ok := b.signals[int32(info)]; ok {
			aml.EmitSignalReady(l, s)
		}
	}
}

func (b *backend) armTimer(wait time.Duration) error {
	if wait < 0 {
		return unix.TimerfdSettime(b.timerfd, 0, &unix.ItimerSpec{}, nil)
	}
	spec := unix.NsecToTimespec(wait.Nanoseconds())
	if spec.Sec == 0 && spec.Nsec == 0 {
		spec.Nsec = 1 // an all-zero value disarms the timerfd instead of firing immediately
	}
	return unix.TimerfdSettime(b.timerfd, 0, &unix.ItimerSpec{Value: spec}, nil)
}

func (b *backend) Interrupt() error {
	// Arming the timerfd to fire in 1ns wakes a blocked epoll_wait
	// without a dedicated self-pipe write.
	return unix.TimerfdSettime(b.timerfd, 0, &unix.ItimerSpec{Value: unix.NsecToTimespec(1)}, nil)
}

func (b *backend) Close() error {
	unix.Close(b.sigfd)
	unix.Close(b.timerfd)
	return unix.Close(b.epfd)
}

func revents(e uint32) aml.Event {
	var m aml.Event
	if e&unix.EPOLLIN != 0 {
		m |= aml.EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		m |= aml.EventWrite
	}
	if e&unix.EPOLLPRI != 0 {
		m |= aml.EventOOB
	}
	return m
}

func drainFD(fd int, n int) {
	buf := make([]byte, n)
	unix.Read(fd, buf)
}

// unsafeSizeofSiginfo is sized to hold a struct signalfd_siginfo (128
// bytes on Linux); only the leading 4-byte signo field is decoded.
const unsafeSizeofSiginfo = 128

func decodeSiginfo(buf []byte) uint32 {
	if len(buf) < 4 {
		return 0
	}
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}
