package quarantine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/ledger/internal/workflow"
	"github.com/JaimeStill/ledger/pkg/pagination"
	"github.com/JaimeStill/ledger/pkg/query"
	"github.com/JaimeStill/ledger/pkg/repository"
)

type repo struct {
	db         *sql.DB
	reviewer   Reviewer
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the review queue. With a nil db, List pages over the
// reviewer's results and requires an owner_id filter.
func New(db *sql.DB, reviewer Reviewer, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		reviewer:   reviewer,
		logger:     logger.With("system", "quarantine"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)

	if r.db == nil {
		return r.listFromReviewer(ctx, page, filters)
	}

	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryCount(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count quarantine entries: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query quarantine entries: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) listFromReviewer(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	if filters.OwnerID == nil {
		return nil, fmt.Errorf("%w: owner_id filter required", workflow.ErrInvalidCommand)
	}

	queued, err := r.reviewer.ListQuarantined(ctx, *filters.OwnerID)
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, q := range queued {
		if e := entryFrom(q); filters.Match(e) {
			matched = append(matched, e)
		}
	}

	result := pagination.Paginate(matched, page)
	return &result, nil
}

func (r *repo) ForOwner(ctx context.Context, ownerID string) ([]workflow.QuarantineEntry, error) {
	return r.reviewer.ListQuarantined(ctx, ownerID)
}

func (r *repo) Resolve(ctx context.Context, documentID string, cmd workflow.ResumeCommand) (*workflow.State, error) {
	s, err := r.reviewer.Resume(ctx, documentID, cmd)
	if err != nil {
		return s, err
	}

	r.logger.InfoContext(
		ctx, "quarantine resolved",
		"document_id", documentID,
		"action", cmd.Action,
		"status", s.Status,
	)
	return s, nil
}
