package training

import (
	"strconv"

	"faceauth/logger"
	"faceauth/models"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"
)

const (
	NoneLabel    int32 = 0
	NoneName           = "None"
	UnknownName        = "Unknown"
)

// LabelDirectory resolves numeric training labels (user IDs) to user names.
// Label 0 is reserved and always resolves to NoneName.
type LabelDirectory struct {
	names cmap.ConcurrentMap[string, string]
}

func NewLabelDirectory() *LabelDirectory {
	d := &LabelDirectory{names: cmap.New[string]()}
	d.names.Set(labelKey(NoneLabel), NoneName)
	return d
}

func labelKey(label int32) string {
	return strconv.FormatInt(int64(label), 10)
}

// Reload replaces the table with the current users. On error the previous table stays in place.
func (d *LabelDirectory) Reload(list func() ([]models.User, error)) error {
	users, err := list()
	if err != nil {
		logger.Error("failed to fetch user names for label directory", zap.Error(err))
		return err
	}
	d.Set(users)
	logger.Debug("label directory loaded", zap.Int("users", len(users)))
	return nil
}

// Put adds or renames a single user without rescanning the table
func (d *LabelDirectory) Put(u models.User) {
	if !labelable(u.ID) {
		return
	}
	d.names.Set(labelKey(int32(u.ID)), u.Name)
}

func labelable(id uint64) bool {
	return id != 0 && id <= 1<<31-1
}

func (d *LabelDirectory) Set(users []models.User) {
	current := map[string]bool{labelKey(NoneLabel): true}
	for _, u := range users {
		if !labelable(u.ID) {
			continue
		}
		key := labelKey(int32(u.ID))
		current[key] = true
		d.names.Set(key, u.Name)
	}
	for _, key := range d.names.Keys() {
		if !current[key] {
			d.names.Remove(key)
		}
	}
}

func (d *LabelDirectory) Name(label int32) string {
	if name, ok := d.names.Get(labelKey(label)); ok {
		return name
	}
	return UnknownName
}

// Has reports whether label belongs to a known user
func (d *LabelDirectory) Has(label int32) bool {
	return label != NoneLabel && d.names.Has(labelKey(label))
}

// Len includes the reserved label
func (d *LabelDirectory) Len() int {
	return d.names.Count()
}
