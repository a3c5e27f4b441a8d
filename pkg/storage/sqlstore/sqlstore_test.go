// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlstore

import "testing"

func TestRebind(t *testing.T) {
	numbered := &Store{dialect: Dialect{NumberedPlaceholders: true}}
	got := numbered.rebind(`SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?`)
	if want := `SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3`; got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	plain := &Store{}
	q := `SELECT 1 WHERE x = ?`
	if got := plain.rebind(q); got != q {
		t.Errorf("rebind without numbering changed the query: %q", got)
	}
}

func TestIntegrationColumnList(t *testing.T) {
	got := integrationColumnList("i.")
	if got[:6] != "i.id, " {
		t.Errorf("unexpected prefix: %q", got)
	}
	if want := "i.updated_at"; got[len(got)-len(want):] != want {
		t.Errorf("unexpected suffix: %q", got)
	}
}
