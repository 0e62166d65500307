package credman

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/warpdl/warpimport/internal/dataimport"
)

// ImportBookmarks stores tree under a new top-level folder named label,
// with one subfolder per non-empty root. Bookmarks whose URL is already
// stored are counted as duplicates and skipped; bookmarks without a valid
// absolute URL are counted as failed.
func (v *Vault) ImportBookmarks(ctx context.Context, tree *dataimport.BookmarkTree, label string) (dataimport.Summary, error) {
	var sum dataimport.Summary
	if tree == nil {
		return sum, nil
	}
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return sum, fmt.Errorf("credman: begin: %w", err)
	}
	defer tx.Rollback()

	w := &bookmarkWriter{tx: tx, now: time.Now().Unix()}
	position, err := w.nextRootPosition(ctx)
	if err != nil {
		return sum, err
	}
	top, err := w.insert(ctx, sql.NullInt64{}, position, label, "", true)
	if err != nil {
		return sum, err
	}
	i := 0
	for _, root := range []*dataimport.BookmarkNode{tree.BookmarksBar, tree.OtherBookmarks} {
		if root == nil || len(root.Children) == 0 {
			continue
		}
		id, err := w.insert(ctx, top, i, root.Title, "", true)
		if err != nil {
			return sum, err
		}
		i++
		if err := w.children(ctx, id, root.Children, &sum); err != nil {
			return sum, err
		}
	}
	if err := tx.Commit(); err != nil {
		return sum, fmt.Errorf("credman: commit: %w", err)
	}
	return sum, nil
}

type bookmarkWriter struct {
	tx  *sql.Tx
	now int64
}

func (w *bookmarkWriter) nextRootPosition(ctx context.Context) (int, error) {
	var n int
	err := w.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks WHERE parent IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("credman: count folders: %w", err)
	}
	return n, nil
}

func (w *bookmarkWriter) insert(ctx context.Context, parent sql.NullInt64, position int, title, rawURL string, folder bool) (sql.NullInt64, error) {
	u := sql.NullString{String: rawURL, Valid: !folder}
	res, err := w.tx.ExecContext(ctx,
		`INSERT INTO bookmarks (parent, position, title, url, is_folder, created) VALUES (?, ?, ?, ?, ?, ?)`,
		parent, position, title, u, folder, w.now)
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("credman: insert bookmark: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("credman: insert bookmark: %w", err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func (w *bookmarkWriter) exists(ctx context.Context, rawURL string) (bool, error) {
	var one int
	err := w.tx.QueryRowContext(ctx, `SELECT 1 FROM bookmarks WHERE url = ? LIMIT 1`, rawURL).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("credman: lookup bookmark: %w", err)
	}
	return true, nil
}

func (w *bookmarkWriter) children(ctx context.Context, parent sql.NullInt64, nodes []*dataimport.BookmarkNode, sum *dataimport.Summary) error {
	position := 0
	for _, n := range nodes {
		if n.IsFolder {
			id, err := w.insert(ctx, parent, position, n.Title, "", true)
			if err != nil {
				return err
			}
			position++
			if err := w.children(ctx, id, n.Children, sum); err != nil {
				return err
			}
			continue
		}
		if u, err := url.Parse(n.URL); err != nil || !u.IsAbs() {
			sum.Failed++
			continue
		}
		dup, err := w.exists(ctx, n.URL)
		if err != nil {
			return err
		}
		if dup {
			sum.Duplicate++
			continue
		}
		if _, err := w.insert(ctx, parent, position, n.Title, n.URL, false); err != nil {
			return err
		}
		position++
		sum.Successful++
	}
	return nil
}

// BookmarkFolder is a stored top-level import folder.
type BookmarkFolder struct {
	Title     string
	Bookmarks int
	Created   time.Time
}

// BookmarkFolders lists the top-level folders in insertion order with the
// number of bookmarks below each.
func (v *Vault) BookmarkFolders(ctx context.Context) ([]BookmarkFolder, error) {
	rows, err := v.db.QueryContext(ctx, `
		WITH RECURSIVE tree(root, id, is_folder) AS (
			SELECT id, id, is_folder FROM bookmarks WHERE parent IS NULL
			UNION ALL
			SELECT tree.root, b.id, b.is_folder FROM bookmarks b JOIN tree ON b.parent = tree.id
		)
		SELECT r.title, r.created, COUNT(CASE WHEN tree.is_folder = 0 THEN 1 END)
		FROM bookmarks r JOIN tree ON tree.root = r.id
		GROUP BY r.id ORDER BY r.position, r.id`)
	if err != nil {
		return nil, fmt.Errorf("credman: query folders: %w", err)
	}
	defer rows.Close()

	var out []BookmarkFolder
	for rows.Next() {
		var f BookmarkFolder
		var created int64
		if err := rows.Scan(&f.Title, &created, &f.Bookmarks); err != nil {
			return nil, fmt.Errorf("credman: scan folder: %w", err)
		}
		f.Created = time.Unix(created, 0)
		out = append(out, f)
	}
	return out, rows.Err()
}
