// Package types defines the domain model shared by the storage, merge and
// HTTP layers: legislative processes (Vorgang), their procedural stations,
// documents, committee meetings (Sitzung) with agenda items (Top), and the
// supporting vocabularies.
//
// Every top-level entity carries a public api_id (a UUID string). The
// surrogate integer keys used by the store never leave the storage layer.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Vorgang is a legislative process with its lifecycle of stations.
type Vorgang struct {
	APIID               string        `json:"api_id"`
	Titel               string        `json:"titel"`
	Kurztitel           *string       `json:"kurztitel,omitempty"`
	Wahlperiode         int           `json:"wahlperiode"`
	Verfassungsaendernd bool          `json:"verfassungsaendernd"`
	Typ                 Vorgangstyp   `json:"typ"`
	IDs                 []VgIdent     `json:"ids,omitempty"`
	Links               []string      `json:"links,omitempty"`
	Initiatoren         []Autor       `json:"initiatoren"`
	Stationen           []Station     `json:"stationen"`
	Lobbyregister       []Lobbyeintrag `json:"lobbyregister,omitempty"`
}

// VgIdent is an external identifier of a Vorgang, e.g. the Drucksnr of the
// initiating document. The pair (Typ, ID) is what candidate matching keys on.
type VgIdent struct {
	ID  string     `json:"id"`
	Typ VgIdentTyp `json:"typ"`
}

// Station is one recorded step of a Vorgang: a committee reading, a plenary
// vote, a publication. Stations are records of fact, not state transitions.
type Station struct {
	APIID           string      `json:"api_id"`
	Typ             Stationstyp `json:"typ"`
	Titel           *string     `json:"titel,omitempty"`
	ZPStart         time.Time   `json:"zp_start"`
	ZPModifiziert   *time.Time  `json:"zp_modifiziert,omitempty"`
	GremiumFederf   *bool       `json:"gremium_federf,omitempty"`
	Link            *string     `json:"link,omitempty"`
	Parlament       Parlament   `json:"parlament"`
	Gremium         *Gremium    `json:"gremium,omitempty"`
	Trojanergefahr  *int        `json:"trojanergefahr,omitempty"` // 0-10 heuristic
	Schlagworte     []string    `json:"schlagworte,omitempty"`
	AdditionalLinks []string    `json:"additional_links,omitempty"`
	Dokumente       []DokRef    `json:"dokumente"`
	Stellungnahmen  []DokRef    `json:"stellungnahmen,omitempty"`
}

// Dokument is a referenced document. Content is opaque: the record holds a
// URL plus a content hash; equal hash means equal document.
type Dokument struct {
	APIID           string     `json:"api_id"`
	Typ             Doktyp     `json:"typ"`
	Titel           string     `json:"titel"`
	Kurztitel       *string    `json:"kurztitel,omitempty"`
	Vorwort         *string    `json:"vorwort,omitempty"`
	Volltext        string     `json:"volltext"`
	Zusammenfassung *string    `json:"zusammenfassung,omitempty"`
	Link            string     `json:"link"`
	Hash            string     `json:"hash"`
	Drucksnr        *string    `json:"drucksnr,omitempty"`
	Meinung         *int       `json:"meinung,omitempty"` // 1-5 stance when a Stellungnahme
	ZPReferenz      time.Time  `json:"zp_referenz"`
	ZPErstellt      *time.Time `json:"zp_erstellt,omitempty"`
	ZPModifiziert   time.Time  `json:"zp_modifiziert"`
	Schlagworte     []string   `json:"schlagworte,omitempty"`
	Autoren         []Autor    `json:"autoren,omitempty"`
}

// DokRef is an element of a mixed document list: either a bare api_id
// reference to a stored Dokument or a full embedded Dokument. On the wire a
// reference is a JSON string and an embedded document a JSON object.
type DokRef struct {
	Referenz string    // api_id, set when this is a reference
	Dokument *Dokument // set when this is an embedded document
}

// IsRef reports whether r is a bare api_id reference.
func (r DokRef) IsRef() bool { return r.Dokument == nil }

// APIID returns the api_id regardless of representation.
func (r DokRef) APIID() string {
	if r.Dokument != nil {
		return r.Dokument.APIID
	}
	return r.Referenz
}

func (r DokRef) MarshalJSON() ([]byte, error) {
	if r.Dokument != nil {
		return json.Marshal(r.Dokument)
	}
	return json.Marshal(r.Referenz)
}

func (r *DokRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		r.Dokument = nil
		return json.Unmarshal(data, &r.Referenz)
	}
	var d Dokument
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("dokument reference is neither api_id nor object: %w", err)
	}
	r.Referenz = ""
	r.Dokument = &d
	return nil
}

// Sitzung is a plenary or committee meeting.
type Sitzung struct {
	APIID     string    `json:"api_id"`
	Titel     *string   `json:"titel,omitempty"`
	Termin    time.Time `json:"termin"`
	Gremium   Gremium   `json:"gremium"`
	Nummer    int       `json:"nummer"`
	Public    bool      `json:"public"`
	Link      *string   `json:"link,omitempty"`
	Tops      []Top     `json:"tops"`
	Dokumente []DokRef  `json:"dokumente,omitempty"`
	Experten  []Autor   `json:"experten,omitempty"`
}

// Top is a single agenda item of a Sitzung. VorgangIDs is derived on read:
// the Vorgangs whose stations reference any document of this Top. It is
// never written by clients.
type Top struct {
	Nummer     int      `json:"nummer"`
	Titel      string   `json:"titel"`
	Dokumente  []DokRef `json:"dokumente,omitempty"`
	VorgangIDs []string `json:"vorgang_id,omitempty"`
}

// Autor identifies an author or initiator. Uniqueness is on
// (Person, Organisation, Fachgebiet).
type Autor struct {
	Person        *string `json:"person,omitempty"`
	Organisation  string  `json:"organisation"`
	Fachgebiet    *string `json:"fachgebiet,omitempty"`
	Lobbyregister *string `json:"lobbyregister,omitempty"`
}

// Gremium identifies a committee. Uniqueness is on
// (Name, Parlament, Wahlperiode).
type Gremium struct {
	Name        string    `json:"name"`
	Parlament   Parlament `json:"parlament"`
	Wahlperiode int       `json:"wahlperiode"`
	Link        *string   `json:"link,omitempty"`
}

// Lobbyeintrag is a lobby-register entry attached to a Vorgang. The whole
// set is replaced on every merge; entries are never merged individually.
type Lobbyeintrag struct {
	Organisation          Autor    `json:"organisation"`
	Intention             string   `json:"intention"`
	InterneID             string   `json:"interne_id"`
	Link                  string   `json:"link"`
	BetroffeneDrucksachen []string `json:"betroffene_drucksachen,omitempty"`
}

// Validate checks the structural invariants a Vorgang payload must satisfy
// before it reaches the merge engine.
func (v *Vorgang) Validate() error {
	if v.Titel == "" {
		return fmt.Errorf("vorgang %s: titel is required", v.APIID)
	}
	if v.Wahlperiode < 0 {
		return fmt.Errorf("vorgang %s: wahlperiode must be non-negative", v.APIID)
	}
	for i := range v.Stationen {
		if err := v.Stationen[i].Validate(); err != nil {
			return fmt.Errorf("vorgang %s: %w", v.APIID, err)
		}
	}
	for _, id := range v.IDs {
		if id.ID == "" {
			return fmt.Errorf("vorgang %s: empty identifier value", v.APIID)
		}
	}
	return nil
}

// Validate checks Station invariants, notably that parlament agrees with the
// gremium's parlament when a gremium is set.
func (s *Station) Validate() error {
	if s.Gremium != nil && s.Gremium.Parlament != s.Parlament {
		return fmt.Errorf("station %s: parlament %s does not match gremium parlament %s",
			s.APIID, s.Parlament, s.Gremium.Parlament)
	}
	if s.Trojanergefahr != nil && (*s.Trojanergefahr < 0 || *s.Trojanergefahr > 10) {
		return fmt.Errorf("station %s: trojanergefahr must be 0-10", s.APIID)
	}
	for _, d := range s.Dokumente {
		if d.Dokument != nil {
			if err := d.Dokument.Validate(); err != nil {
				return fmt.Errorf("station %s: %w", s.APIID, err)
			}
		}
	}
	for _, d := range s.Stellungnahmen {
		if d.Dokument != nil {
			if err := d.Dokument.Validate(); err != nil {
				return fmt.Errorf("station %s: %w", s.APIID, err)
			}
		}
	}
	return nil
}

// Validate checks Dokument invariants.
func (d *Dokument) Validate() error {
	if d.Hash == "" {
		return fmt.Errorf("dokument %s: hash is required", d.APIID)
	}
	if d.Titel == "" {
		return fmt.Errorf("dokument %s: titel is required", d.APIID)
	}
	if d.Meinung != nil && (*d.Meinung < 1 || *d.Meinung > 5) {
		return fmt.Errorf("dokument %s: meinung must be 1-5", d.APIID)
	}
	return nil
}

// Validate checks Sitzung invariants.
func (s *Sitzung) Validate() error {
	if s.Termin.IsZero() {
		return fmt.Errorf("sitzung %s: termin is required", s.APIID)
	}
	if s.Gremium.Name == "" {
		return fmt.Errorf("sitzung %s: gremium is required", s.APIID)
	}
	for _, t := range s.Tops {
		for _, d := range t.Dokumente {
			if d.Dokument != nil {
				if err := d.Dokument.Validate(); err != nil {
					return fmt.Errorf("sitzung %s top %d: %w", s.APIID, t.Nummer, err)
				}
			}
		}
	}
	return nil
}
