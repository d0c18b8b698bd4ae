package sqlite

const schema = `
-- Tickets table
CREATE TABLE IF NOT EXISTS tickets (
    id TEXT PRIMARY KEY,
    objective TEXT NOT NULL CHECK(length(objective) <= 2000),
    success_criteria TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL DEFAULT 'pending'
        CHECK(status IN ('pending', 'in_progress', 'completed', 'failed', 'blocked')),
    priority INTEGER NOT NULL DEFAULT 1 CHECK(priority >= 0 AND priority <= 3),
    source_kind TEXT NOT NULL DEFAULT 'human',
    source_id TEXT NOT NULL DEFAULT '',
    claimed_by TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at);
CREATE INDEX IF NOT EXISTS idx_tickets_source ON tickets(source_kind, source_id);

-- At most one open ticket per detector source. Empty source_id rows
-- (ad hoc human tickets) are exempt. This index is what makes the
-- check-then-create dedup race-free: the losing writer's INSERT fails
-- and is converted into a deduplicated_to result.
CREATE UNIQUE INDEX IF NOT EXISTS uq_open_ticket_per_source
    ON tickets(source_kind, source_id)
    WHERE status IN ('pending', 'in_progress', 'blocked') AND source_id != '';

-- Atomic id counter, one row per prefix
CREATE TABLE IF NOT EXISTS ticket_counters (
    prefix TEXT PRIMARY KEY,
    last_id INTEGER NOT NULL DEFAULT 0
);

-- Dependencies table: ticket_id depends on depends_on_id
CREATE TABLE IF NOT EXISTS ticket_dependencies (
    ticket_id TEXT NOT NULL,
    depends_on_id TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_by TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (ticket_id, depends_on_id),
    FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE,
    FOREIGN KEY (depends_on_id) REFERENCES tickets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_deps_ticket ON ticket_dependencies(ticket_id);
CREATE INDEX IF NOT EXISTS idx_deps_depends_on ON ticket_dependencies(depends_on_id);

-- Ticket events table (append-only trajectory)
CREATE TABLE IF NOT EXISTS ticket_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ticket_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    actor TEXT NOT NULL DEFAULT '',
    payload TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_events_ticket ON ticket_events(ticket_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON ticket_events(created_at);

-- Ready tickets view: pending with every dependency completed
CREATE VIEW IF NOT EXISTS ready_tickets AS
SELECT t.*
FROM tickets t
WHERE t.status = 'pending'
  AND NOT EXISTS (
    SELECT 1 FROM ticket_dependencies d
    JOIN tickets dep ON d.depends_on_id = dep.id
    WHERE d.ticket_id = t.id
      AND dep.status != 'completed'
  );

-- SLO registry
CREATE TABLE IF NOT EXISTS slos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    target REAL NOT NULL,
    window_days INTEGER NOT NULL DEFAULT 30,
    metric_query TEXT NOT NULL,
    fast_burn REAL NOT NULL DEFAULT 14.4,
    slow_burn REAL NOT NULL DEFAULT 6.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Invariant registry
CREATE TABLE IF NOT EXISTS invariants (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    query TEXT NOT NULL,
    condition TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Agent instances table
CREATE TABLE IF NOT EXISTS agent_instances (
    instance_id TEXT PRIMARY KEY,
    hostname TEXT NOT NULL,
    pid INTEGER NOT NULL,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_heartbeat DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    version TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_agent_instances_heartbeat ON agent_instances(last_heartbeat);
`
