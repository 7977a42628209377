package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_foreign_listing_event",
			SQL: `SELECT e.id, e.subject_id, e.actor_id FROM moderation_events e
                  JOIN listings l ON l.id = e.subject_id
                  JOIN users u ON u.id = e.actor_id
                  WHERE e.subject_kind = 'LISTING'
                    AND u.role <> 'ADMIN'
                    AND e.actor_id <> l.agent_id`,
		},
		{
			Name: "O2_edit_after_approval",
			SQL: `SELECT id, edited_at, reviewed_at FROM listings
                  WHERE status = 'APPROVED'
                    AND edited_at IS NOT NULL
                    AND (reviewed_at IS NULL OR edited_at > reviewed_at)`,
		},
		{
			Name: "O3_event_chain",
			SQL: `WITH ev AS (
                      SELECT subject_id, id, previous_status,
                             LAG(next_status) OVER (PARTITION BY subject_kind, subject_id ORDER BY id) AS prior
                      FROM moderation_events)
                  SELECT * FROM ev WHERE prior IS NOT NULL AND prior <> previous_status`,
		},
		{
			Name: "O4_event_tail_matches_status",
			SQL: `SELECT l.id, l.status, last.next_status FROM listings l
                  JOIN LATERAL (
                      SELECT next_status FROM moderation_events e
                      WHERE e.subject_kind = 'LISTING' AND e.subject_id = l.id
                      ORDER BY e.id DESC LIMIT 1) last ON true
                  WHERE last.next_status <> l.status`,
		},
		{
			Name: "O5_noop_event",
			SQL:  `SELECT id FROM moderation_events WHERE previous_status = next_status`,
		},
		{
			Name: "O6_negative_counters",
			SQL:  `SELECT id, views, contacts FROM listings WHERE views < 0 OR contacts < 0`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
