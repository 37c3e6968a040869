package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Veraticus/moneyfeed/internal/model"
)

// FetchPage implements service.PageFetcher for both backend pagination styles.
// Account subjects read the offset-paginated payment history; user subjects
// read the cursor-paginated feed. The request's mode picks the query shape.
func (c *Client) FetchPage(ctx context.Context, req model.PageRequest) (model.PageResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = model.DefaultPageLimit
	}

	switch req.Subject.Kind {
	case model.SubjectAccount:
		return c.accountPage(ctx, req, limit)
	case model.SubjectUser:
		return c.userPage(ctx, req, limit)
	}
	return model.PageResult{}, fmt.Errorf("unsupported subject kind %q", req.Subject.Kind)
}

func (c *Client) accountPage(ctx context.Context, req model.PageRequest, limit int) (model.PageResult, error) {
	q := pageQuery(limit)
	applyPosition(q.Set, req)

	var resp PaymentsResponse
	path := fmt.Sprintf("/api/accounts/%d/payments", req.Subject.ID)
	if err := c.authedDo(ctx, http.MethodGet, path, q, &resp); err != nil {
		return model.PageResult{}, err
	}

	items := make([]model.Transaction, 0, len(resp.Transactions))
	ref := req.Subject.Reference()
	for _, p := range resp.Transactions {
		tx := p.Transaction()
		tx.ResolveDirection(ref)
		items = append(items, tx)
	}
	page := pageResult(req.Mode, items)
	page.Balance = resp.CurrentBalance.StringFixed(2)
	return page, nil
}

func (c *Client) userPage(ctx context.Context, req model.PageRequest, limit int) (model.PageResult, error) {
	q := pageQuery(limit)
	applyPosition(q.Set, req)

	var resp []FeedItem
	if err := c.authedDo(ctx, http.MethodGet, "/api/accounts/transactions/paginated", q, &resp); err != nil {
		return model.PageResult{}, err
	}

	items := make([]model.Transaction, 0, len(resp))
	for _, f := range resp {
		items = append(items, f.Transaction())
	}
	return pageResult(req.Mode, items), nil
}

func applyPosition(set func(key, value string), req model.PageRequest) {
	switch req.Mode {
	case model.ModeCursor:
		if req.Cursor != nil {
			set("cursor", *req.Cursor)
		}
	default:
		set("offset", strconv.Itoa(req.Offset))
	}
}

// pageResult derives the next cursor from the last item; an empty page has none.
func pageResult(mode model.Mode, items []model.Transaction) model.PageResult {
	result := model.PageResult{Items: items}
	if mode == model.ModeCursor && len(items) > 0 {
		next := items[len(items)-1].ID
		result.NextCursor = &next
	}
	return result
}
