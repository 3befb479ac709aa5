package presenter

import (
	"time"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
)

// ThumbnailState tells the front end what to draw in a device tile.
type ThumbnailState string

const (
	ThumbnailPending ThumbnailState = "pending"
	ThumbnailImage   ThumbnailState = "image"
	ThumbnailLocked  ThumbnailState = "locked"
	ThumbnailWarning ThumbnailState = "warning"
)

// Thumbnail is the tile image of a device.
type Thumbnail struct {
	State       ThumbnailState `json:"state"`
	ContentType string         `json:"content_type,omitempty"`
	Size        int            `json:"size"`
	Data        []byte         `json:"-"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Row is the presentation state of one device.
type Row struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
	Source   string `json:"source"`
	Host     string `json:"host"`
	Hostname string `json:"hostname,omitempty"`
	Name     string `json:"name"`
	Hardware string `json:"hardware,omitempty"`
	Location string `json:"location,omitempty"`

	Auth         string          `json:"auth"`
	Profiles     []onvif.Profile `json:"profiles,omitempty"`
	ProfileIndex int             `json:"profile_index"`
	Thumbnail    Thumbnail       `json:"thumbnail"`
	Failure      string          `json:"failure,omitempty"`
	Selected     bool            `json:"selected"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PromptKind distinguishes credential requests.
type PromptKind string

const (
	// PromptLogin asks for credentials of a device already in the fleet.
	PromptLogin PromptKind = "login"
	// PromptAdd asks for credentials of a device being added by URL.
	PromptAdd PromptKind = "add"
)

// Prompt is a pending request for user input.
type Prompt struct {
	ID        string     `json:"id"`
	Kind      PromptKind `json:"kind"`
	DeviceID  string     `json:"device_id,omitempty"`
	Endpoint  string     `json:"endpoint"`
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// PlayerStatus is the playback state shown to the user.
type PlayerStatus string

const (
	PlayerStopped PlayerStatus = "stopped"
	PlayerLoading PlayerStatus = "loading"
	PlayerPlaying PlayerStatus = "playing"
)

// Player is the presentation state of the stream viewer.
type Player struct {
	Status   PlayerStatus `json:"status"`
	DeviceID string       `json:"device_id,omitempty"`
	URL      string       `json:"url,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Tasks mirrors the latest dispatch notification.
type Tasks struct {
	Label   string `json:"label"`
	Running int    `json:"running"`
	Pending int    `json:"pending"`
	Workers int    `json:"workers"`
}

// Notice is a transient message, such as a failed manual add.
type Notice struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

const maxNotices = 32

// View is the mutable presentation model. It is only ever touched on the
// presenter goroutine.
type View struct {
	rows    []*Row
	index   map[string]*Row
	prompts map[string]*Prompt
	order   []string
	player  Player
	tasks   Tasks
	notices []Notice
}

func newView() *View {
	return &View{
		index:   make(map[string]*Row),
		prompts: make(map[string]*Prompt),
		player:  Player{Status: PlayerStopped},
	}
}

// Row returns the row for a device, or nil.
func (v *View) Row(id string) *Row {
	return v.index[id]
}

// UpsertRow inserts a row or returns the existing one with the same ID.
func (v *View) UpsertRow(r Row) *Row {
	if existing, ok := v.index[r.ID]; ok {
		return existing
	}
	row := r
	if row.Thumbnail.State == "" {
		row.Thumbnail.State = ThumbnailPending
	}
	row.UpdatedAt = time.Now()
	v.rows = append(v.rows, &row)
	v.index[row.ID] = &row
	return &row
}

// RemoveRow deletes a row.
func (v *View) RemoveRow(id string) {
	if _, ok := v.index[id]; !ok {
		return
	}
	delete(v.index, id)
	for i, r := range v.rows {
		if r.ID == id {
			v.rows = append(v.rows[:i], v.rows[i+1:]...)
			break
		}
	}
}

// ResetRows drops every row and every login prompt.
func (v *View) ResetRows() {
	v.rows = nil
	v.index = make(map[string]*Row)
	for id, p := range v.prompts {
		if p.Kind == PromptLogin {
			v.removePrompt(id)
		}
	}
}

// SetSelected marks exactly one row as selected; an empty id clears it.
func (v *View) SetSelected(id string) {
	for _, r := range v.rows {
		r.Selected = r.ID == id
	}
}

// AddPrompt records a prompt, replacing any earlier login prompt for the
// same device.
func (v *View) AddPrompt(p Prompt) {
	if p.Kind == PromptLogin {
		for id, existing := range v.prompts {
			if existing.Kind == PromptLogin && existing.DeviceID == p.DeviceID {
				v.removePrompt(id)
			}
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	v.prompts[p.ID] = &p
	v.order = append(v.order, p.ID)
}

// RemovePrompt deletes a prompt.
func (v *View) RemovePrompt(id string) {
	v.removePrompt(id)
}

func (v *View) removePrompt(id string) {
	if _, ok := v.prompts[id]; !ok {
		return
	}
	delete(v.prompts, id)
	for i, pid := range v.order {
		if pid == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// SetPlayer replaces the player state.
func (v *View) SetPlayer(p Player) {
	v.player = p
}

// SetTasks replaces the task indicator.
func (v *View) SetTasks(t Tasks) {
	v.tasks = t
}

// AddNotice appends a notice, keeping the most recent ones.
func (v *View) AddNotice(level, message string) {
	v.notices = append(v.notices, Notice{Level: level, Message: message, Time: time.Now()})
	if len(v.notices) > maxNotices {
		v.notices = v.notices[len(v.notices)-maxNotices:]
	}
}

// Snapshot is an immutable copy of the view for readers on other
// goroutines.
type Snapshot struct {
	Version uint64   `json:"version"`
	Rows    []Row    `json:"rows"`
	Prompts []Prompt `json:"prompts"`
	Player  Player   `json:"player"`
	Tasks   Tasks    `json:"tasks"`
	Notices []Notice `json:"notices"`
}

// Row finds a row by device ID.
func (s *Snapshot) Row(id string) (Row, bool) {
	for _, r := range s.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

// Prompt finds a prompt by ID.
func (s *Snapshot) Prompt(id string) (Prompt, bool) {
	for _, p := range s.Prompts {
		if p.ID == id {
			return p, true
		}
	}
	return Prompt{}, false
}

func (v *View) snapshot(version uint64) *Snapshot {
	s := &Snapshot{
		Version: version,
		Rows:    make([]Row, len(v.rows)),
		Prompts: make([]Prompt, 0, len(v.order)),
		Player:  v.player,
		Tasks:   v.tasks,
		Notices: append([]Notice(nil), v.notices...),
	}
	for i, r := range v.rows {
		s.Rows[i] = *r
		s.Rows[i].Profiles = append([]onvif.Profile(nil), r.Profiles...)
	}
	for _, id := range v.order {
		s.Prompts = append(s.Prompts, *v.prompts[id])
	}
	return s
}
