package store

// Schema for the postgres backend. The unique index on (organization_id,
// code) is what makes chart-of-accounts provisioning race-safe, and the
// partial unique index on (organization_id, external_id) is what makes
// bank-sync re-imports idempotent.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id              UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	code            VARCHAR(50) NOT NULL,
	name            VARCHAR(255) NOT NULL,
	type            VARCHAR(50) NOT NULL,
	tax_id          VARCHAR(11),
	balance         NUMERIC(15,2) NOT NULL DEFAULT 0.00,
	is_active       BOOLEAN NOT NULL DEFAULT true,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS accounts_org_code_idx ON accounts (organization_id, code);

CREATE TABLE IF NOT EXISTS invoices (
	id              UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	account_id      UUID NOT NULL REFERENCES accounts(id),
	type            VARCHAR(20) NOT NULL,
	invoice_number  VARCHAR(50) NOT NULL,
	invoice_date    TIMESTAMPTZ NOT NULL,
	due_date        TIMESTAMPTZ,
	status          VARCHAR(20) NOT NULL DEFAULT 'draft',
	subtotal        NUMERIC(15,2) NOT NULL,
	tax_total       NUMERIC(15,2) NOT NULL,
	total           NUMERIC(15,2) NOT NULL,
	currency        VARCHAR(3) NOT NULL DEFAULT 'TRY',
	notes           TEXT,
	gib_status      VARCHAR(50),
	created_by      UUID,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS invoices_org_number_idx ON invoices (organization_id, invoice_number);
CREATE INDEX IF NOT EXISTS invoices_org_idx ON invoices (organization_id);
CREATE INDEX IF NOT EXISTS invoices_status_idx ON invoices (status);

CREATE TABLE IF NOT EXISTS invoice_lines (
	id          UUID PRIMARY KEY,
	invoice_id  UUID NOT NULL REFERENCES invoices(id),
	description VARCHAR(255) NOT NULL,
	quantity    NUMERIC(10,2) NOT NULL,
	unit_price  NUMERIC(15,2) NOT NULL,
	tax_rate    INTEGER NOT NULL DEFAULT 20,
	tax_amount  NUMERIC(15,2) NOT NULL,
	total       NUMERIC(15,2) NOT NULL
);

CREATE INDEX IF NOT EXISTS invoice_lines_invoice_idx ON invoice_lines (invoice_id);

CREATE TABLE IF NOT EXISTS ledgers (
	id              UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	journal_number  VARCHAR(64) NOT NULL,
	date            TIMESTAMPTZ NOT NULL,
	description     VARCHAR(255) NOT NULL,
	type            VARCHAR(20) NOT NULL,
	reference_id    UUID NOT NULL,
	reference_type  VARCHAR(50) NOT NULL,
	status          VARCHAR(20) NOT NULL DEFAULT 'posted'
);

CREATE UNIQUE INDEX IF NOT EXISTS ledgers_journal_number_idx ON ledgers (organization_id, journal_number);
CREATE INDEX IF NOT EXISTS ledgers_reference_idx ON ledgers (reference_id);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id          UUID PRIMARY KEY,
	ledger_id   UUID NOT NULL REFERENCES ledgers(id),
	account_id  UUID NOT NULL REFERENCES accounts(id),
	debit       NUMERIC(15,2) NOT NULL DEFAULT 0.00,
	credit      NUMERIC(15,2) NOT NULL DEFAULT 0.00,
	description VARCHAR(255) NOT NULL,
	CONSTRAINT ledger_entries_one_side CHECK (
		(debit > 0 AND credit = 0) OR (credit > 0 AND debit = 0)
	)
);

CREATE INDEX IF NOT EXISTS ledger_entries_ledger_idx ON ledger_entries (ledger_id);
CREATE INDEX IF NOT EXISTS ledger_entries_account_idx ON ledger_entries (account_id);

CREATE TABLE IF NOT EXISTS transactions (
	id              UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	account_id      UUID NOT NULL REFERENCES accounts(id),
	date            TIMESTAMPTZ NOT NULL,
	amount          NUMERIC(15,2) NOT NULL,
	description     VARCHAR(255) NOT NULL,
	category        VARCHAR(50) NOT NULL,
	reference_id    UUID,
	reference_type  VARCHAR(50),
	external_id     VARCHAR(100),
	created_by      UUID,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS transactions_org_external_idx
	ON transactions (organization_id, external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS transactions_org_idx ON transactions (organization_id);
CREATE INDEX IF NOT EXISTS transactions_date_idx ON transactions (date);
`

// Same schema in sqlite dialect. Amounts are TEXT because this backend only
// serves tests and local development; the finance package never does
// arithmetic through SQL here.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	code            TEXT NOT NULL,
	name            TEXT NOT NULL,
	type            TEXT NOT NULL,
	tax_id          TEXT,
	balance         TEXT NOT NULL DEFAULT '0.00',
	is_active       BOOLEAN NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS accounts_org_code_idx ON accounts (organization_id, code);

CREATE TABLE IF NOT EXISTS invoices (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	type            TEXT NOT NULL,
	invoice_number  TEXT NOT NULL,
	invoice_date    DATETIME NOT NULL,
	due_date        DATETIME,
	status          TEXT NOT NULL DEFAULT 'draft',
	subtotal        TEXT NOT NULL,
	tax_total       TEXT NOT NULL,
	total           TEXT NOT NULL,
	currency        TEXT NOT NULL DEFAULT 'TRY',
	notes           TEXT,
	gib_status      TEXT,
	created_by      TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS invoices_org_number_idx ON invoices (organization_id, invoice_number);

CREATE TABLE IF NOT EXISTS invoice_lines (
	id          TEXT PRIMARY KEY,
	invoice_id  TEXT NOT NULL REFERENCES invoices(id),
	description TEXT NOT NULL,
	quantity    TEXT NOT NULL,
	unit_price  TEXT NOT NULL,
	tax_rate    INTEGER NOT NULL DEFAULT 20,
	tax_amount  TEXT NOT NULL,
	total       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledgers (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	journal_number  TEXT NOT NULL,
	date            DATETIME NOT NULL,
	description     TEXT NOT NULL,
	type            TEXT NOT NULL,
	reference_id    TEXT NOT NULL,
	reference_type  TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'posted'
);

CREATE UNIQUE INDEX IF NOT EXISTS ledgers_journal_number_idx ON ledgers (organization_id, journal_number);
CREATE INDEX IF NOT EXISTS ledgers_reference_idx ON ledgers (reference_id);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id          TEXT PRIMARY KEY,
	ledger_id   TEXT NOT NULL REFERENCES ledgers(id),
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	debit       TEXT NOT NULL DEFAULT '0.00',
	credit      TEXT NOT NULL DEFAULT '0.00',
	description TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL,
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	date            DATETIME NOT NULL,
	amount          TEXT NOT NULL,
	description     TEXT NOT NULL,
	category        TEXT NOT NULL,
	reference_id    TEXT,
	reference_type  TEXT,
	external_id     TEXT,
	created_by      TEXT,
	created_at      DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS transactions_org_external_idx
	ON transactions (organization_id, external_id) WHERE external_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS transactions_org_idx ON transactions (organization_id);
`
