package devicegroup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/equiptrack/maintsync/internal/api"
	"github.com/equiptrack/maintsync/internal/auth"
	"github.com/equiptrack/maintsync/internal/dateutil"
	"github.com/equiptrack/maintsync/internal/model"
)

// FetchMaintenanceHistory returns the history of one device, newest first.
// Results are memoised per device for a short time.
func (c *Cache) FetchMaintenanceHistory(ctx context.Context, deviceName string) ([]model.HistoryRow, error) {
	name := strings.TrimSpace(deviceName)
	if name == "" {
		return nil, fmt.Errorf("%w: device name is empty", ErrInvalidEntry)
	}

	key := c.memoKey(name)
	if rows, ok := c.history.Get(key); ok {
		return append([]model.HistoryRow(nil), rows...), nil
	}

	var raw json.RawMessage
	if err := c.fetcher.GetAction(ctx, api.ActionGetHistory, c.params(url.Values{"deviceName": {name}}), &raw); err != nil {
		return nil, err
	}
	var rows []model.HistoryRow
	if err := decodeList(raw, &rows, "history", "rows", "data"); err != nil {
		return nil, &api.Error{Kind: api.KindInvalidJSON, Action: api.ActionGetHistory, Code: api.CodeInvalidJSONResponse, Err: err}
	}

	model.SortHistoryDesc(rows)
	c.history.Add(key, rows)
	return append([]model.HistoryRow(nil), rows...), nil
}

// AppendHistory validates entry locally, then records it through an
// authenticated call. A session expiry here raises the modal notice.
func (c *Cache) AppendHistory(ctx context.Context, entry model.HistoryRow) error {
	entry.DeviceName = strings.TrimSpace(entry.DeviceName)
	entry.Date = strings.TrimSpace(entry.Date)
	entry.Content = strings.TrimSpace(entry.Content)

	if entry.DeviceName == "" {
		return fmt.Errorf("%w: device name is empty", ErrInvalidEntry)
	}
	if !dateutil.IsValidDdMmYy(entry.Date) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidEntry, dateutil.ErrInvalidDate, entry.Date)
	}
	if entry.Content == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidEntry)
	}

	payload := map[string]any{
		"deviceName": entry.DeviceName,
		"date":       entry.Date,
		"content":    entry.Content,
	}
	if c.sheetID != "" {
		payload["sheetId"] = c.sheetID
	}
	if err := c.authed.AuthedFetchJSON(ctx, api.ActionAppendHistory, payload, auth.ModeModal, nil); err != nil {
		return err
	}

	c.history.Remove(c.memoKey(entry.DeviceName))
	c.appendLocal(entry)
	return nil
}

// appendLocal adds a recorded entry to the group that owns the device, so
// scans see it before the next refresh.
func (c *Cache) appendLocal(entry model.HistoryRow) {
	c.mu.Lock()
	updated := false
	for i := range c.groups {
		g := &c.groups[i]
		if _, ok := g.FindDevice(entry.DeviceName); !ok {
			continue
		}
		rows := make([]model.HistoryRow, 0, len(g.History.Rows)+1)
		rows = append(rows, g.History.Rows...)
		g.History.Rows = append(rows, entry)
		updated = true
		break
	}
	if updated {
		if err := c.persistLocked(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist appended history")
		}
	}
	c.mu.Unlock()

	if updated {
		c.broadcast()
	}
}

// FindDevice resolves a scanned device name against the in-memory groups.
func (c *Cache) FindDevice(name string) (ScanResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := range c.groups {
		g := &c.groups[i]
		if d, ok := g.FindDevice(name); ok {
			return ScanResult{Group: g.Table, Device: d, History: g.HistoryFor(d.Name)}, true
		}
	}
	return ScanResult{}, false
}

func (c *Cache) memoKey(deviceName string) string {
	return c.sheetID + "|" + strings.ToLower(deviceName)
}
