package store

// TriggerStatus is the visibility state of a registered trigger
// transaction. Transitions are driven entirely by the monitor; see
// nextStatus in the monitor package for the state machine itself.
type TriggerStatus string

const (
	StatusUnchecked   TriggerStatus = "unchecked"
	StatusUnseen      TriggerStatus = "unseen"
	StatusReversible  TriggerStatus = "reversible"
	StatusIrreversible TriggerStatus = "irreversible"
)

const schema = `
CREATE TABLE IF NOT EXISTS vault_txids (
	txid            TEXT PRIMARY KEY,
	vault_id        TEXT NOT NULL,
	status          TEXT NOT NULL,
	commitment_txid TEXT
);

CREATE INDEX IF NOT EXISTS vault_txids_vault_id_idx ON vault_txids(vault_id);
CREATE INDEX IF NOT EXISTS vault_txids_status_idx ON vault_txids(status);

CREATE TABLE IF NOT EXISTS commitments (
	txid       TEXT PRIMARY KEY,
	vault_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	push_token        TEXT NOT NULL,
	vault_id          TEXT NOT NULL,
	wallet_id         TEXT NOT NULL,
	wallet_name       TEXT NOT NULL,
	vault_number      INTEGER NOT NULL,
	watchtower_id     TEXT NOT NULL,
	locale            TEXT NOT NULL,
	first_attempt_at  INTEGER,
	last_attempt_at   INTEGER,
	attempt_count     INTEGER NOT NULL DEFAULT 0,
	acknowledged      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (push_token, vault_id)
);

CREATE INDEX IF NOT EXISTS notifications_vault_id_idx ON notifications(vault_id);

CREATE TABLE IF NOT EXISTS network_state (
	id                 INTEGER PRIMARY KEY CHECK (id = 1),
	last_checked_height INTEGER
);
`
