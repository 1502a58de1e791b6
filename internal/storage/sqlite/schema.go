package sqlite

const schema = `
-- Controlled vocabularies. Referring tables FK by surrogate id.
CREATE TABLE IF NOT EXISTS parlament (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS vorgangstyp (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS stationstyp (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS dokumententyp (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS vg_ident_typ (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS schlagwort (
    id INTEGER PRIMARY KEY,
    value TEXT NOT NULL UNIQUE
);

-- Shared tuple vocabularies. Optional key parts store '' rather than NULL
-- so the composite unique indexes actually bite.
CREATE TABLE IF NOT EXISTS autor (
    id INTEGER PRIMARY KEY,
    person TEXT NOT NULL DEFAULT '',
    organisation TEXT NOT NULL,
    fachgebiet TEXT NOT NULL DEFAULT '',
    lobbyregister TEXT,
    UNIQUE (person, organisation, fachgebiet)
);
CREATE TABLE IF NOT EXISTS gremium (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    parl INTEGER NOT NULL REFERENCES parlament(id),
    wp INTEGER NOT NULL,
    link TEXT,
    UNIQUE (name, parl, wp)
);

-- Main entities.
CREATE TABLE IF NOT EXISTS vorgang (
    id INTEGER PRIMARY KEY,
    api_id TEXT NOT NULL UNIQUE,
    titel TEXT NOT NULL,
    kurztitel TEXT,
    wahlperiode INTEGER NOT NULL CHECK (wahlperiode >= 0),
    verfassungsaendernd INTEGER NOT NULL DEFAULT 0,
    typ INTEGER NOT NULL REFERENCES vorgangstyp(id)
);
CREATE INDEX IF NOT EXISTS idx_vorgang_wp_typ ON vorgang(wahlperiode, typ);

CREATE TABLE IF NOT EXISTS station (
    id INTEGER PRIMARY KEY,
    api_id TEXT NOT NULL UNIQUE,
    vg_id INTEGER NOT NULL REFERENCES vorgang(id) ON DELETE CASCADE,
    typ INTEGER NOT NULL REFERENCES stationstyp(id),
    titel TEXT,
    zp_start DATETIME NOT NULL,
    zp_modifiziert DATETIME,
    link TEXT,
    gremium_federf INTEGER,
    trojanergefahr INTEGER CHECK (trojanergefahr BETWEEN 0 AND 10),
    parl INTEGER NOT NULL REFERENCES parlament(id),
    gr_id INTEGER REFERENCES gremium(id)
);
CREATE INDEX IF NOT EXISTS idx_station_vg ON station(vg_id);
CREATE INDEX IF NOT EXISTS idx_station_zp_start ON station(zp_start);

CREATE TABLE IF NOT EXISTS dokument (
    id INTEGER PRIMARY KEY,
    api_id TEXT NOT NULL UNIQUE,
    typ INTEGER NOT NULL REFERENCES dokumententyp(id),
    titel TEXT NOT NULL,
    kurztitel TEXT,
    vorwort TEXT,
    volltext TEXT NOT NULL DEFAULT '',
    zusammenfassung TEXT,
    link TEXT NOT NULL DEFAULT '',
    hash TEXT NOT NULL,
    drucksnr TEXT,
    meinung INTEGER CHECK (meinung BETWEEN 1 AND 5),
    zp_referenz DATETIME NOT NULL,
    zp_erstellt DATETIME,
    zp_modifiziert DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dokument_hash ON dokument(hash);
CREATE INDEX IF NOT EXISTS idx_dokument_drucksnr ON dokument(drucksnr, typ);

CREATE TABLE IF NOT EXISTS sitzung (
    id INTEGER PRIMARY KEY,
    api_id TEXT NOT NULL UNIQUE,
    titel TEXT,
    termin DATETIME NOT NULL,
    gr_id INTEGER NOT NULL REFERENCES gremium(id),
    nummer INTEGER NOT NULL,
    public INTEGER NOT NULL DEFAULT 1,
    link TEXT
);
CREATE INDEX IF NOT EXISTS idx_sitzung_termin ON sitzung(termin);

CREATE TABLE IF NOT EXISTS top (
    id INTEGER PRIMARY KEY,
    sid INTEGER NOT NULL REFERENCES sitzung(id) ON DELETE CASCADE,
    nummer INTEGER NOT NULL,
    titel TEXT NOT NULL,
    UNIQUE (sid, nummer)
);

CREATE TABLE IF NOT EXISTS lobbyregistereintrag (
    id INTEGER PRIMARY KEY,
    vg_id INTEGER NOT NULL REFERENCES vorgang(id) ON DELETE CASCADE,
    autor_id INTEGER NOT NULL REFERENCES autor(id),
    intention TEXT NOT NULL DEFAULT '',
    interne_id TEXT NOT NULL DEFAULT '',
    link TEXT NOT NULL DEFAULT ''
);

-- Associations.
CREATE TABLE IF NOT EXISTS rel_vorgang_links (
    vg_id INTEGER NOT NULL REFERENCES vorgang(id) ON DELETE CASCADE,
    link TEXT NOT NULL,
    UNIQUE (vg_id, link)
);
CREATE TABLE IF NOT EXISTS rel_vorgang_init (
    vg_id INTEGER NOT NULL REFERENCES vorgang(id) ON DELETE CASCADE,
    autor_id INTEGER NOT NULL REFERENCES autor(id),
    UNIQUE (vg_id, autor_id)
);
CREATE TABLE IF NOT EXISTS rel_vorgang_ident (
    vg_id INTEGER NOT NULL REFERENCES vorgang(id) ON DELETE CASCADE,
    typ INTEGER NOT NULL REFERENCES vg_ident_typ(id),
    identifikator TEXT NOT NULL,
    UNIQUE (vg_id, typ, identifikator)
);
CREATE TABLE IF NOT EXISTS rel_station_dokument (
    stat_id INTEGER NOT NULL REFERENCES station(id) ON DELETE CASCADE,
    dok_id INTEGER NOT NULL REFERENCES dokument(id),
    UNIQUE (stat_id, dok_id)
);
CREATE TABLE IF NOT EXISTS rel_station_stln (
    stat_id INTEGER NOT NULL REFERENCES station(id) ON DELETE CASCADE,
    dok_id INTEGER NOT NULL REFERENCES dokument(id),
    UNIQUE (stat_id, dok_id)
);
CREATE TABLE IF NOT EXISTS rel_station_link (
    stat_id INTEGER NOT NULL REFERENCES station(id) ON DELETE CASCADE,
    link TEXT NOT NULL,
    UNIQUE (stat_id, link)
);
CREATE TABLE IF NOT EXISTS rel_station_schlagwort (
    stat_id INTEGER NOT NULL REFERENCES station(id) ON DELETE CASCADE,
    sw_id INTEGER NOT NULL REFERENCES schlagwort(id),
    UNIQUE (stat_id, sw_id)
);
CREATE TABLE IF NOT EXISTS rel_dok_schlagwort (
    dok_id INTEGER NOT NULL REFERENCES dokument(id) ON DELETE CASCADE,
    sw_id INTEGER NOT NULL REFERENCES schlagwort(id),
    UNIQUE (dok_id, sw_id)
);
CREATE TABLE IF NOT EXISTS rel_dok_autor (
    dok_id INTEGER NOT NULL REFERENCES dokument(id) ON DELETE CASCADE,
    autor_id INTEGER NOT NULL REFERENCES autor(id),
    UNIQUE (dok_id, autor_id)
);
CREATE TABLE IF NOT EXISTS rel_sitzung_dokument (
    sid INTEGER NOT NULL REFERENCES sitzung(id) ON DELETE CASCADE,
    dok_id INTEGER NOT NULL REFERENCES dokument(id),
    UNIQUE (sid, dok_id)
);
CREATE TABLE IF NOT EXISTS rel_sitzung_experten (
    sid INTEGER NOT NULL REFERENCES sitzung(id) ON DELETE CASCADE,
    autor_id INTEGER NOT NULL REFERENCES autor(id),
    UNIQUE (sid, autor_id)
);
CREATE TABLE IF NOT EXISTS tops_doks (
    top_id INTEGER NOT NULL REFERENCES top(id) ON DELETE CASCADE,
    dok_id INTEGER NOT NULL REFERENCES dokument(id),
    UNIQUE (top_id, dok_id)
);
CREATE TABLE IF NOT EXISTS rel_lobbyreg_drucksnr (
    lobbyreg_id INTEGER NOT NULL REFERENCES lobbyregistereintrag(id) ON DELETE CASCADE,
    drucksnr TEXT NOT NULL,
    UNIQUE (lobbyreg_id, drucksnr)
);

-- Authentication keys. Only the salted hash is stored.
CREATE TABLE IF NOT EXISTS api_keys (
    id INTEGER PRIMARY KEY,
    key_hash TEXT NOT NULL,
    salt TEXT NOT NULL,
    keytag TEXT NOT NULL UNIQUE,
    scope TEXT NOT NULL,
    created_by INTEGER,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    expires_at DATETIME,
    deleted INTEGER NOT NULL DEFAULT 0,
    last_used DATETIME
);

-- Provenance: which collector/scraper touched which entity, bounded per
-- entity. At most one row per (entity, scraper); touches refresh it.
CREATE TABLE IF NOT EXISTS scraper_touched_vorgang (
    vg_id INTEGER NOT NULL REFERENCES vorgang(id) ON DELETE CASCADE,
    scraper TEXT NOT NULL,
    collector_key INTEGER NOT NULL,
    time_stamp DATETIME NOT NULL,
    UNIQUE (vg_id, scraper)
);
CREATE TABLE IF NOT EXISTS scraper_touched_station (
    stat_id INTEGER NOT NULL REFERENCES station(id) ON DELETE CASCADE,
    scraper TEXT NOT NULL,
    collector_key INTEGER NOT NULL,
    time_stamp DATETIME NOT NULL,
    UNIQUE (stat_id, scraper)
);
CREATE TABLE IF NOT EXISTS scraper_touched_dokument (
    dok_id INTEGER NOT NULL REFERENCES dokument(id) ON DELETE CASCADE,
    scraper TEXT NOT NULL,
    collector_key INTEGER NOT NULL,
    time_stamp DATETIME NOT NULL,
    UNIQUE (dok_id, scraper)
);
CREATE TABLE IF NOT EXISTS scraper_touched_sitzung (
    sid INTEGER NOT NULL REFERENCES sitzung(id) ON DELETE CASCADE,
    scraper TEXT NOT NULL,
    collector_key INTEGER NOT NULL,
    time_stamp DATETIME NOT NULL,
    UNIQUE (sid, scraper)
);

-- Internal metadata (applied migrations and the like).
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
