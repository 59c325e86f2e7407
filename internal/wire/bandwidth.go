package wire

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/autocomp/autocomp/internal/resource"
)

// recomputeWindow is the §4.G 10ms minimum window between bandwidth
// recomputations.
const recomputeWindow = 10 * time.Millisecond

// SocketGauge queries a TCP connection's kernel send-buffer occupancy
// and capacity via SIOCOUTQ/SO_SNDBUF, satisfying both the bandwidth
// estimator's and the selector's need for send-buffer load.
type SocketGauge struct {
	conn     *net.TCPConn
	capacity int
}

// NewSocketGauge wraps conn, reading its SO_SNDBUF once at
// construction (§4.P sets this to a fixed capacity at accept time).
func NewSocketGauge(conn *net.TCPConn) (*SocketGauge, error) {
	g := &SocketGauge{conn: conn}
	var ctrlErr error
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	if err := raw.Control(func(fd uintptr) {
		n, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF)
		if err != nil {
			ctrlErr = err
			return
		}
		g.capacity = n
	}); err != nil {
		return nil, err
	}
	return g, ctrlErr
}

// BytesInSendBuffer returns the number of bytes currently queued in
// the kernel socket send buffer (SIOCOUTQ), or 0 if the query fails.
func (g *SocketGauge) BytesInSendBuffer() int {
	var n int
	raw, err := g.conn.SyscallConn()
	if err != nil {
		return 0
	}
	_ = raw.Control(func(fd uintptr) {
		v, err := unix.IoctlGetInt(int(fd), unix.SIOCOUTQ)
		if err != nil {
			return
		}
		n = v
	})
	return n
}

// SendBufferCapacity returns the socket's configured send-buffer size.
func (g *SocketGauge) SendBufferCapacity() int { return g.capacity }

// SetSendBufferCapacity overrides the cached capacity (§4.P sets the
// acceptor's send-buffer capacity to a fixed value, e.g. 12 MB,
// independent of whatever SO_SNDBUF the kernel reports).
func (g *SocketGauge) SetSendBufferCapacity(n int) { g.capacity = n }

// sendBufferReader is the minimal gauge surface the estimator needs;
// satisfied by *SocketGauge, and by test fakes.
type sendBufferReader interface {
	BytesInSendBuffer() int
}

// BandwidthEstimator implements §4.G: derives a bandwidth_mbps
// estimate from bytes leaving the socket send buffer over time,
// updating a shared resource.State.
type BandwidthEstimator struct {
	state          *resource.State
	gauge          sendBufferReader
	baseTime       time.Time
	bytesSinceBase int64
}

// NewBandwidthEstimator starts tracking from now.
func NewBandwidthEstimator(state *resource.State, gauge sendBufferReader) *BandwidthEstimator {
	return &BandwidthEstimator{state: state, gauge: gauge, baseTime: timeNow()}
}

// timeNow is a seam so tests can stub the clock; production always
// uses time.Now.
var timeNow = time.Now

// OnWrite records that n bytes were just written to the socket,
// updating the shared bandwidth estimate per the §4.G window rule.
func (b *BandwidthEstimator) OnWrite(n int) {
	elapsed := timeNow().Sub(b.baseTime)
	if elapsed < recomputeWindow {
		b.bytesSinceBase += int64(n)
		return
	}
	inBufNow := int64(b.gauge.BytesInSendBuffer())
	elapsedMs := float64(elapsed.Milliseconds())
	if elapsedMs <= 0 {
		elapsedMs = 1
	}
	mbps := 8 * float64(b.bytesSinceBase-inBufNow) / (1000 * elapsedMs)
	b.state.SetBandwidthMbps(mbps)
	b.bytesSinceBase = inBufNow + int64(n)
	b.baseTime = timeNow()
}

// Close marks the connection idle: bandwidth resets to 0.
func (b *BandwidthEstimator) Close() {
	b.state.SetBandwidthMbps(0)
}
