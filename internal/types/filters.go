package types

import "time"

// VorgangFilter narrows a Vorgang listing. Nil fields do not filter.
type VorgangFilter struct {
	Wahlperiode         *int
	Typ                 *Vorgangstyp
	Parlament           *Parlament
	InitiatorPerson     *string
	InitiatorOrg        *string
	InitiatorFachgebiet *string
	Since               *time.Time // lower bound on latest station start
	Until               *time.Time
	Offset              int
	Limit               int
}

// SitzungFilter narrows a Sitzung listing. GremiumLike matches the committee
// name as a substring, case-insensitively.
type SitzungFilter struct {
	Parlament    *Parlament
	Wahlperiode  *int
	Since        *time.Time
	Until        *time.Time
	GremiumLike  *string
	VorgangAPIID *string
	Offset       int
	Limit        int
}
