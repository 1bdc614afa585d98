package loaderr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("load: %w", ReferenceMissing("wood.png", fs.ErrNotExist))
	assert.Equal(t, KindReferenceMissing, KindOf(err))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Equal(t, KindNone, KindOf(errors.New("plain")))
	assert.Equal(t, KindNone, KindOf(nil))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "parse error: a.obj: bad face", Parse("a.obj", errors.New("bad face")).Error())
	assert.Equal(t, "user input: "+ErrNoModel.Error(), UserInput(ErrNoModel).Error())
	assert.Equal(t, "invariant violation: m.glb", (&Error{Kind: KindInvariantViolation, File: "m.glb"}).Error())
	assert.Equal(t, "reference missing", (&Error{Kind: KindReferenceMissing}).Error())
}
