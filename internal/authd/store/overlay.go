package store

import "context"

// WithBlacklist returns a Store identical to base except that blacklist
// operations go to bl. Used to keep users and sessions in SQL while the
// blacklist lives in Redis for multi-instance deployments.
func WithBlacklist(base Store, bl Blacklist) Store {
	return &overlayStore{Store: base, blacklist: bl}
}

type overlayStore struct {
	Store
	blacklist Blacklist
}

func (o *overlayStore) Blacklist() Blacklist { return o.blacklist }

func (o *overlayStore) Tx(ctx context.Context) (Tx, error) {
	tx, err := o.Store.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &overlayTx{txIface: tx, blacklist: o.blacklist}, nil
}

func (o *overlayStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return o.Store.WithTx(ctx, func(tx Tx) error {
		return fn(&overlayTx{txIface: tx, blacklist: o.blacklist})
	})
}

// overlayTx routes blacklist calls to the external store even inside a SQL
// transaction. Those calls are not transactional with the rest; callers
// treat the blacklist as best-effort fast-path storage.
// txIface aliases Tx so it can be embedded without the field name colliding
// with the Tx method promoted from Store.
type txIface = Tx

type overlayTx struct {
	txIface
	blacklist Blacklist
}

func (o *overlayTx) Blacklist() Blacklist { return o.blacklist }
