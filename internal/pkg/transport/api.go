package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anicoll/solax-http-integration/internal/pkg/model"
)

const (
	optReadRealtime = "ReadRealTimeData"
	optReadSetData  = "ReadSetData"
	optSetRegister  = "setReg"
)

// rejected is the marker the device puts in a body when it refuses a
// request. It is matched anywhere in the text, so a legitimate field holding
// the same word also reads as a rejection.
const rejected = "failed"

type writeRequest struct {
	Num  int                `json:"num"`
	Data model.WritePayload `json:"Data"`
}

func (c *Client) body(opt string) string {
	return "optType=" + opt + "&pwd=" + c.password
}

// ReadRealtime fetches the realtime payload.
func (c *Client) ReadRealtime(ctx context.Context) (model.Payload, error) {
	var payload model.Payload
	if err := c.read(ctx, optReadRealtime, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ReadSetData fetches the current values of the writable registers. The
// result is the decoded JSON container as returned by the device.
func (c *Client) ReadSetData(ctx context.Context) (any, error) {
	var set any
	if err := c.read(ctx, optReadSetData, &set); err != nil {
		return nil, err
	}
	return set, nil
}

func (c *Client) read(ctx context.Context, opt string, out any) error {
	text, err := c.Post(ctx, c.body(opt), nil)
	if err != nil {
		return err
	}
	if strings.Contains(text, rejected) {
		c.logger.Error("device rejected request", zap.String("opt_type", opt), zap.String("body", text))
		return fmt.Errorf("%w: %s rejected", ErrProtocol, opt)
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		c.logger.Error("failed to decode json", zap.String("opt_type", opt), zap.String("body", text))
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return nil
}

// WriteRegisters sends a setReg request. The data parameter is embedded as
// raw JSON, the device does not accept it URL-encoded.
func (c *Client) WriteRegisters(ctx context.Context, payload model.WritePayload) error {
	data, err := json.Marshal(writeRequest{Num: len(payload), Data: payload})
	if err != nil {
		return err
	}
	text, err := c.Post(ctx, c.body(optSetRegister)+"&data="+string(data), nil)
	if err != nil {
		return err
	}
	if strings.Contains(text, rejected) {
		c.logger.Error("device rejected write", zap.String("body", text))
		return fmt.Errorf("%w: %s rejected", ErrProtocol, optSetRegister)
	}
	c.logger.Debug("registers written", zap.ByteString("data", data))
	return nil
}
