package notify_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablewise/portal/pkg/notify"
	"github.com/tablewise/portal/pkg/service"
)

func TestQueue(t *testing.T) {
	q := notify.New(0)

	q.Notify("a", service.Toast{Title: "Saved"})
	q.Notify("a", service.Toast{Title: "Failed", Variant: service.ToastVariantDestructive})
	q.Notify("b", service.Toast{Title: "Other"})

	got := q.Drain("a")
	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].ID)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	assert.Equal(t, service.ToastVariantDefault, got[0].Variant)
	assert.Equal(t, service.ToastVariantDestructive, got[1].Variant)

	assert.Empty(t, q.Drain("a"))
	assert.Len(t, q.Drain("b"), 1)
}

func TestQueue_DropsOldest(t *testing.T) {
	q := notify.New(3)

	for i := 0; i < 5; i++ {
		q.Notify("a", service.Toast{Title: fmt.Sprintf("t%d", i)})
	}

	got := q.Drain("a")
	require.Len(t, got, 3)
	assert.Equal(t, "t2", got[0].Title)
	assert.Equal(t, "t4", got[2].Title)
}

func TestQueue_Forget(t *testing.T) {
	q := notify.New(0)

	q.Notify("a", service.Toast{Title: "x"})
	q.Forget("a")

	assert.Empty(t, q.Drain("a"))
}
