package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCommerce(t *testing.T) {
	okBefore := testutil.ToFloat64(CommerceCallsTotal.WithLabelValues("search", "ok"))
	errBefore := testutil.ToFloat64(CommerceCallsTotal.WithLabelValues("search", "error"))

	ObserveCommerce("search", nil)
	ObserveCommerce("search", errors.New("boom"))
	ObserveCommerce("search", nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(CommerceCallsTotal.WithLabelValues("search", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(CommerceCallsTotal.WithLabelValues("search", "error")))
}
