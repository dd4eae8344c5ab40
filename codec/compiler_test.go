package codec

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	zcerrors "github.com/wippyai/zerocopy/errors"
	"github.com/wippyai/zerocopy/formula"
)

type countingObserver struct {
	encodes, decodes, hits, misses atomic.Int64
}

func (o *countingObserver) ObserveEncode(*formula.Formula, Sizes, error) { o.encodes.Add(1) }
func (o *countingObserver) ObserveDecode(*formula.Formula, int, error)   { o.decodes.Add(1) }

func (o *countingObserver) ObservePlan(hit bool) {
	if hit {
		o.hits.Add(1)
	} else {
		o.misses.Add(1)
	}
}

func TestCompiler_Cache(t *testing.T) {
	obs := &countingObserver{}
	c := NewCompiler(2, obs)
	point := reflect.TypeFor[Point]()

	require.NoError(t, c.Compile(pointFormula, point))
	require.NoError(t, c.Compile(pointFormula, point))
	assert.Equal(t, int64(1), obs.misses.Load())
	assert.Equal(t, int64(1), obs.hits.Load())
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Compile(formula.U8, reflect.TypeFor[uint8]()))
	require.NoError(t, c.Compile(formula.String, reflect.TypeFor[string]()))
	assert.Equal(t, 2, c.Len(), "cache is bounded")
}

func TestCompiler_Errors(t *testing.T) {
	c := NewCompiler(0, nil)
	tests := []struct {
		f      *formula.Formula
		goType reflect.Type
		name   string
		kind   zcerrors.Kind
	}{
		{formula.U32, reflect.TypeFor[int32](), "width", zcerrors.KindTypeMismatch},
		{formula.Array(formula.U8, 3), reflect.TypeFor[[2]uint8](), "array length", zcerrors.KindTypeMismatch},
		{pointFormula, reflect.TypeFor[struct{ X int32 }](), "missing field", zcerrors.KindFieldMissing},
		{formula.Enum("E", formula.V("A", formula.F("x", formula.U8))), reflect.TypeFor[int](), "enum fields in int", zcerrors.KindTypeMismatch},
		{formula.Option(formula.U8), reflect.TypeFor[uint8](), "option needs pointer", zcerrors.KindTypeMismatch},
		{formula.U8, reflect.TypeFor[error](), "non-empty interface", zcerrors.KindUnsupported},
		{nil, reflect.TypeFor[uint8](), "nil formula", zcerrors.KindNilPointer},
		{formula.U8, nil, "nil type", zcerrors.KindNilPointer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Compile(tt.f, tt.goType)
			var ze *zcerrors.Error
			require.True(t, errors.As(err, &ze), "error = %v", err)
			assert.Equal(t, tt.kind, ze.Kind)
			assert.Equal(t, zcerrors.PhaseCompile, ze.Phase)
		})
	}
}

func TestCompiler_FieldMatching(t *testing.T) {
	f := formula.Struct("T", formula.F("user_id", formula.U32), formula.F("label", formula.String))
	type tagged struct {
		Name   string `zc:"label"`
		UserID uint32
		Skip   int `zc:"-"`
	}
	v := tagged{Name: "n", UserID: 4, Skip: 9}
	got := roundTrip(t, f, v)
	assert.Equal(t, tagged{Name: "n", UserID: 4}, got)
}

func TestEncoder_ObserverAndLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	obs := &countingObserver{}
	opts := Options{Observer: obs}
	enc, dec := NewEncoder(opts), NewDecoder(opts)

	data, err := enc.Marshal(formula.U16, uint16(1))
	require.NoError(t, err)
	var out uint16
	require.NoError(t, dec.Unmarshal(formula.U16, data, &out))
	require.Error(t, dec.Unmarshal(formula.U16, data[:1], &out))

	assert.Equal(t, int64(1), obs.encodes.Load())
	assert.Equal(t, int64(2), obs.decodes.Load())
	assert.Equal(t, 1, logs.FilterMessage("decode failed").Len())
	assert.NotZero(t, logs.FilterMessage("compiled plan").Len())
}

func TestCodec_Concurrent(t *testing.T) {
	enc := NewEncoder(Options{})
	dec := NewDecoder(Options{Compiler: enc.Compiler()})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := Record{ID: uint64(i), Name: "worker", Tags: []string{"t"}, Shape: Shape{Empty: &struct{}{}}}
			for range 50 {
				data, err := enc.Marshal(recordFormula, v)
				if err != nil {
					errs <- err
					return
				}
				var out Record
				if err := dec.Unmarshal(recordFormula, data, &out); err != nil {
					errs <- err
					return
				}
				if out.ID != v.ID {
					errs <- errors.New("decoded the wrong record")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
