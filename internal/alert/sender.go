package alert

import (
	"context"
	"encoding/json"
	"net"

	"github.com/felixgeelhaar/stressguard/internal/errors"
)

// Send delivers one reading to the receiver at addr
func Send(ctx context.Context, addr string, r Reading) error {
	if addr == "" {
		addr = DefaultAddr
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAlertNetwork, "connect to alert receiver "+addr, err).
			WithSuggestion("Start the receiver with: stressguard listen")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAlertDecode, "encode reading", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return errors.Wrap(errors.ErrCodeAlertNetwork, "send alert", err)
	}
	return nil
}
