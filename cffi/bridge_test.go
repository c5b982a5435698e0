//go:build cgo && (linux || darwin)
// +build cgo
// +build linux darwin

package cffi

import (
	"bytes"
	"io/ioutil"
	"strings"
	"sync"
	"time"
	"unsafe"

	. "gopkg.in/check.v1"

	"github.com/covscript/stdutils/cffi/test_utils"
	"github.com/covscript/stdutils/dlog"
	. "github.com/covscript/stdutils/gocheck2"
	"github.com/covscript/stdutils/stats"
	"github.com/covscript/stdutils/time2"
	"github.com/covscript/stdutils/value"
)

type BridgeSuite struct {
	stats   *stats.MemoryStatsFactory
	clock   *time2.MockClock
	options Options
}

var _ = Suite(&BridgeSuite{})

func (s *BridgeSuite) SetUpTest(c *C) {
	test_utils.Reset()
	s.stats = stats.NewMemoryStatsFactory()
	s.clock = &time2.MockClock{}
	s.clock.AutoAdvance(5 * time.Microsecond)
	s.options = Options{Stats: s.stats, Clock: s.clock}
}

func (s *BridgeSuite) typed(
	c *C,
	fn unsafe.Pointer,
	ret NativeType,
	args ...NativeType) *TypedDispatcher {

	d, err := NewTypedDispatcher(fn, s.options, ret, args...)
	c.Assert(err, IsNil)
	return d
}

func (s *BridgeSuite) invoke(c *C, d *TypedDispatcher, args ...value.Value) value.Value {
	result, err := d.Invoke(args...)
	c.Assert(err, IsNil)
	return result
}

func (s *BridgeSuite) TestDescriptors(c *C) {
	for t := Void; t < numNativeTypes; t++ {
		c.Assert(descriptorAddr(t) != nil, IsTrue, Commentf("type %s", t))
	}
	c.Assert(descriptorAddr(String), Equals, descriptorAddr(Pointer))
	c.Assert(descriptorAddr(SInt64) == descriptorAddr(Double), IsFalse)
	c.Assert(descriptorAddr(NativeType(-1)) == nil, IsTrue)
	c.Assert(slotSize >= 8, IsTrue)
	c.Assert(nativeSize(Void), Equals, uintptr(0))
	c.Assert(nativeSize(SInt8), Equals, uintptr(1))
	c.Assert(nativeSize(UInt64), Equals, uintptr(8))
}

func (s *BridgeSuite) TestArgHolders(c *C) {
	h, err := newArgHolder(value.String("abc"), String)
	c.Assert(err, IsNil)
	c.Assert(h.buf != nil, IsTrue)
	c.Assert(loadPointer(h.ptr()), Equals, h.buf)
	c.Assert(h.toDynamic().Equal(value.String("abc")), IsTrue)
	h.release()
	c.Assert(h.slot == nil, IsTrue)
	c.Assert(h.buf == nil, IsTrue)
	h.release()

	h, err = newArgHolder(value.Int(257), UChar)
	c.Assert(err, IsNil)
	c.Assert(h.toDynamic().Equal(value.Int(1)), IsTrue)
	h.release()

	h, err = newArgHolder(value.Int(-1), UInt32)
	c.Assert(err, IsNil)
	c.Assert(h.toDynamic().Equal(value.Int(4294967295)), IsTrue)
	h.release()

	h, err = newArgHolder(value.Null(), SLong)
	c.Assert(err, IsNil)
	c.Assert(h.toDynamic().Equal(value.Int(0)), IsTrue)
	h.release()

	h, err = newArgHolder(value.Null(), Pointer)
	c.Assert(err, IsNil)
	c.Assert(h.toDynamic().Equal(value.Pointer(nil)), IsTrue)
	h.release()

	h, err = newArgHolder(value.Float(1.25), extendedFloat)
	c.Assert(err, IsNil)
	c.Assert(h.toDynamic().Equal(value.Float(1.25)), IsTrue)
	h.release()

	h, err = newArgHolder(value.Float(0.5), Float)
	c.Assert(err, IsNil)
	c.Assert(h.toDynamic().Equal(value.Float(0.5)), IsTrue)
	h.release()

	_, err = newArgHolder(value.Bool(true), SInt)
	c.Assert(err, HasKind, UnsupportedValueKind)
	_, err = newArgHolder(value.String("x"), SInt)
	c.Assert(err, HasKind, TypeMismatch)
}

func (s *BridgeSuite) TestReturnHolder(c *C) {
	h, err := newReturnHolder(String)
	c.Assert(err, IsNil)
	c.Assert(h.isReturn, IsTrue)
	// A zeroed string slot is a NULL char*.
	c.Assert(h.toDynamic().IsNull(), IsTrue)
	h.release()

	h, err = newReturnHolder(SInt)
	c.Assert(err, IsNil)
	c.Assert(h.toDynamic().Equal(value.Int(0)), IsTrue)
	h.release()
}

func (s *BridgeSuite) TestBuildFrame(c *C) {
	args := []value.Value{value.Int(3), value.String("x"), value.Null()}
	frame, err := buildFrame(args, []NativeType{SInt, String, Pointer})
	c.Assert(err, IsNil)
	c.Assert(frame.holders, HasLen, 3)

	slots := (*[3]unsafe.Pointer)(frame.argv)
	for i, h := range frame.holders {
		c.Assert(slots[i], Equals, h.ptr())
	}

	frame.release()
	c.Assert(frame.holders, IsNil)
	c.Assert(frame.argv == nil, IsTrue)
	frame.release()

	frame, err = buildFrame(nil, nil)
	c.Assert(err, IsNil)
	c.Assert(frame.argv == nil, IsTrue)
	frame.release()

	_, err = buildFrame(args, []NativeType{SInt, SInt, Pointer})
	c.Assert(err, HasKind, TypeMismatch)
	_, err = buildFrame(args[:1], []NativeType{SInt, SInt})
	c.Assert(err, HasKind, ArityMismatch)
}

func (s *BridgeSuite) TestTypedAdd(c *C) {
	add := s.typed(c, test_utils.Add(), SInt, SInt, SInt)
	defer add.Close()

	result := s.invoke(c, add, value.Int(2), value.Int(3))
	c.Assert(result.Equal(value.Int(5)), IsTrue)
	c.Assert(test_utils.AddCalls(), Equals, 1)

	// Null is accepted as a zero sentinel in integer slots.
	result = s.invoke(c, add, value.Null(), value.Int(4))
	c.Assert(result.Equal(value.Int(4)), IsTrue)

	c.Assert(s.stats.Value(callsMetric, map[string]string{modeTag: typedMode}), Equals, 2.0)
	c.Assert(
		s.stats.Observations(callLatencyMetric, map[string]string{modeTag: typedMode}),
		DeepEquals,
		[]float64{5, 5})
}

func (s *BridgeSuite) TestTypedArityMismatch(c *C) {
	add := s.typed(c, test_utils.Add(), SInt, SInt, SInt)
	defer add.Close()

	_, err := add.Invoke(value.Int(1))
	c.Assert(err, HasKind, ArityMismatch)
	_, err = add.Invoke(value.Int(1), value.Int(2), value.Int(3))
	c.Assert(err, HasKind, ArityMismatch)
	c.Assert(test_utils.AddCalls(), Equals, 0)

	c.Assert(
		s.stats.Value(callErrorsMetric, map[string]string{kindTag: string(ArityMismatch)}),
		Equals,
		2.0)
	c.Assert(s.stats.Value(callsMetric, map[string]string{modeTag: typedMode}), Equals, 0.0)
}

func (s *BridgeSuite) TestTypedTypeMismatch(c *C) {
	add := s.typed(c, test_utils.Add(), SInt, SInt, SInt)
	defer add.Close()

	_, err := add.Invoke(value.String("2"), value.Int(3))
	c.Assert(err, HasKind, TypeMismatch)
	_, err = add.Invoke(value.Float(2.5), value.Int(3))
	c.Assert(err, HasKind, TypeMismatch)
	_, err = add.Invoke(value.Int(2), value.Bool(false))
	c.Assert(err, HasKind, UnsupportedValueKind)
	c.Assert(test_utils.AddCalls(), Equals, 0)
}

func (s *BridgeSuite) TestTypedStringReturnIsCopied(c *C) {
	connect := s.typed(c, test_utils.ConnectStr(), Pointer, String, String)
	defer connect.Close()
	free := s.typed(c, test_utils.FreeStr(), Void, Pointer)
	defer free.Close()

	raw := s.invoke(c, connect, value.String("foo"), value.String("bar"))
	c.Assert(raw.Kind(), Equals, value.KindPointer)
	c.Assert(IsNullptr(raw), IsFalse)

	str, err := MakeString(raw)
	c.Assert(err, IsNil)

	result := s.invoke(c, free, raw)
	c.Assert(result.IsNull(), IsTrue)
	c.Assert(str.Equal(value.String("foobar")), IsTrue)
	c.Assert(test_utils.ConnectCalls(), Equals, 1)

	// Declared as string, the result is copied out by the return holder.
	connectStr := s.typed(c, test_utils.ConnectStr(), String, String, String)
	defer connectStr.Close()
	result = s.invoke(c, connectStr, value.String("foo"), value.String("bar"))
	c.Assert(result.Equal(value.String("foobar")), IsTrue)
}

func (s *BridgeSuite) TestTypedStringReturnOutlivesBuffer(c *C) {
	staticStr := s.typed(c, test_utils.StaticStr(), String, String, String)
	defer staticStr.Close()

	first := s.invoke(c, staticStr, value.String("foo"), value.String("bar"))
	second := s.invoke(c, staticStr, value.String("qu"), value.String("ux"))

	c.Assert(first.Equal(value.String("foobar")), IsTrue)
	c.Assert(second.Equal(value.String("quux")), IsTrue)
}

func (s *BridgeSuite) TestTypedNullStringReturn(c *C) {
	nullStr := s.typed(c, test_utils.NullStr(), String)
	defer nullStr.Close()
	c.Assert(s.invoke(c, nullStr).IsNull(), IsTrue)
}

func (s *BridgeSuite) TestTypedNullPointerArgument(c *C) {
	isNull := s.typed(c, test_utils.IsNull(), SInt, Pointer)
	defer isNull.Close()

	result := s.invoke(c, isNull, value.Null())
	c.Assert(result.Equal(value.Int(1)), IsTrue)
	c.Assert(test_utils.LastWasNull(), Equals, 1)

	result = s.invoke(c, isNull, value.Pointer(nil))
	c.Assert(result.Equal(value.Int(1)), IsTrue)

	buf := test_utils.CString("x")
	defer test_utils.Free(buf)
	result = s.invoke(c, isNull, value.Pointer(buf))
	c.Assert(result.Equal(value.Int(0)), IsTrue)
	c.Assert(test_utils.LastWasNull(), Equals, 0)
	c.Assert(test_utils.NullCalls(), Equals, 3)
}

func (s *BridgeSuite) TestTypedNumericReturns(c *C) {
	buf := test_utils.CString("p")
	defer test_utils.Free(buf)

	cases := []struct {
		fn   unsafe.Pointer
		ret  NativeType
		args []NativeType
		in   []value.Value
		out  value.Value
	}{
		{test_utils.Scale(), Double, []NativeType{Double, Float},
			[]value.Value{value.Float(1.5), value.Float(2)}, value.Float(3)},
		{test_utils.Halve(), Float, []NativeType{Float},
			[]value.Value{value.Float(3)}, value.Float(1.5)},
		{test_utils.NegateSChar(), SChar, []NativeType{SChar},
			[]value.Value{value.Int(5)}, value.Int(-5)},
		{test_utils.NegateShort(), SShort, []NativeType{SShort},
			[]value.Value{value.Int(1234)}, value.Int(-1234)},
		{test_utils.EchoUChar(), UChar, []NativeType{UChar},
			[]value.Value{value.Int(300)}, value.Int(44)},
		{test_utils.EchoUShort(), UShort, []NativeType{UShort},
			[]value.Value{value.Int(65535)}, value.Int(65535)},
		{test_utils.EchoUInt(), UInt, []NativeType{UInt},
			[]value.Value{value.Int(-1)}, value.Int(4294967295)},
		{test_utils.EchoLong(), SLong, []NativeType{SLong},
			[]value.Value{value.Int(-123456789)}, value.Int(-123456789)},
		{test_utils.EchoInt8(), SInt8, []NativeType{SInt8},
			[]value.Value{value.Int(-128)}, value.Int(-128)},
		{test_utils.EchoUInt64(), UInt64, []NativeType{UInt64},
			[]value.Value{value.Int(-1)}, value.Int(-1)},
		{test_utils.EchoPtr(), Pointer, []NativeType{Pointer},
			[]value.Value{value.Pointer(buf)}, value.Pointer(buf)},
	}

	for _, tc := range cases {
		d := s.typed(c, tc.fn, tc.ret, tc.args...)
		result := s.invoke(c, d, tc.in...)
		c.Assert(result.Equal(tc.out), IsTrue,
			Commentf("%s: got %s, expected %s", d.Signature(), result, tc.out))
		d.Close()
	}
}

func (s *BridgeSuite) TestTypedConcurrentInvoke(c *C) {
	add := s.typed(c, test_utils.Add(), SInt, SInt, SInt)
	defer add.Close()

	const workers = 8
	const calls = 50

	wg := sync.WaitGroup{}
	failures := make(chan string, workers*calls)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				result, err := add.Invoke(value.Int(int64(w)), value.Int(int64(i)))
				if err != nil || !result.Equal(value.Int(int64(w+i))) {
					failures <- result.String()
				}
			}
		}(w)
	}
	wg.Wait()
	close(failures)

	c.Assert(len(failures), Equals, 0)
	c.Assert(test_utils.AddCalls(), Equals, workers*calls)
}

func (s *BridgeSuite) TestTypedSignature(c *C) {
	d := s.typed(c, test_utils.Add(), SInt, SInt, SInt)
	defer d.Close()

	sig := d.Signature()
	c.Assert(sig.Return, Equals, SInt)
	c.Assert(sig.Args, DeepEquals, []NativeType{SInt, SInt})
	sig.Args[0] = String
	c.Assert(d.Signature().Args[0], Equals, SInt)
	c.Assert(d.Symbol(), Equals, "")
	c.Assert(d.Address(), Equals, test_utils.Add())
}

func (s *BridgeSuite) TestTypedBindFailures(c *C) {
	_, err := NewTypedDispatcher(nil, s.options, SInt)
	c.Assert(err, HasKind, SymbolNotFound)

	_, err = NewTypedDispatcher(test_utils.Add(), s.options, NativeType(99), SInt)
	c.Assert(err, HasKind, CallInterfacePrepFailed)

	_, err = NewTypedDispatcher(test_utils.Add(), s.options, SInt, SInt, Void)
	c.Assert(err, HasKind, CallInterfacePrepFailed)

	_, err = NewTypedDispatcher(test_utils.Add(), s.options, SInt, extendedFloat)
	c.Assert(err, HasKind, CallInterfacePrepFailed)
}

func (s *BridgeSuite) TestTypedClose(c *C) {
	add := s.typed(c, test_utils.Add(), SInt, SInt, SInt)
	c.Assert(add.IsClosed(), IsFalse)

	add.Close()
	add.Close()
	c.Assert(add.IsClosed(), IsTrue)
	c.Assert(add.ci.cif == nil, IsTrue)

	_, err := add.Invoke(value.Int(1), value.Int(2))
	c.Assert(err, HasKind, DispatcherClosed)
	c.Assert(test_utils.AddCalls(), Equals, 0)
}

func (s *BridgeSuite) TestInferredInt64s(c *C) {
	d, err := NewInferredDispatcher(test_utils.RecordInt64s(), s.options)
	c.Assert(err, IsNil)
	defer d.Close()

	result, err := d.Invoke(value.Int(7), value.Int(-9))
	c.Assert(err, IsNil)
	c.Assert(result.IsNull(), IsTrue)
	c.Assert(test_utils.RecordCalls(), Equals, 1)

	a, b := test_utils.Recorded()
	c.Assert(a, Equals, int64(7))
	c.Assert(b, Equals, int64(-9))
	c.Assert(s.stats.Value(callsMetric, map[string]string{modeTag: inferredMode}), Equals, 1.0)
}

func (s *BridgeSuite) TestInferredLongDoubleAndString(c *C) {
	ld, err := NewInferredDispatcher(test_utils.RecordLongDouble(), s.options)
	c.Assert(err, IsNil)
	defer ld.Close()

	_, err = ld.Invoke(value.Float(2.5))
	c.Assert(err, IsNil)
	c.Assert(test_utils.RecordedLongDouble(), Equals, 2.5)

	str, err := NewInferredDispatcher(test_utils.RecordString(), s.options)
	c.Assert(err, IsNil)
	defer str.Close()

	_, err = str.Invoke(value.String("hello"))
	c.Assert(err, IsNil)
	c.Assert(test_utils.RecordedString(), Equals, "hello")
	c.Assert(test_utils.RecordCalls(), Equals, 2)
}

func (s *BridgeSuite) TestInferredUnsupportedValue(c *C) {
	d, err := NewInferredDispatcher(test_utils.RecordInt64s(), s.options)
	c.Assert(err, IsNil)
	defer d.Close()

	_, err = d.Invoke(value.Int(1), value.Bool(true))
	c.Assert(err, HasKind, UnsupportedValueKind)
	c.Assert(test_utils.RecordCalls(), Equals, 0)

	_, err = NewInferredDispatcher(nil, s.options)
	c.Assert(err, HasKind, SymbolNotFound)
}

func failingPrepare(NativeType, []NativeType) (*callInterface, error) {
	return nil, validateSignature(NativeType(-1), nil)
}

func (s *BridgeSuite) TestInferredPrepFailureIsSkipped(c *C) {
	var out bytes.Buffer
	dlog.SetOutput(&out)
	defer dlog.SetOutput(ioutil.Discard)

	d, err := NewInferredDispatcher(test_utils.RecordInt64s(), s.options)
	c.Assert(err, IsNil)
	defer d.Close()
	prepareInferred = failingPrepare
	defer func() { prepareInferred = prepareCallInterface }()

	result, err := d.Invoke(value.Int(1), value.Int(2))
	c.Assert(err, IsNil)
	c.Assert(result.IsNull(), IsTrue)
	c.Assert(test_utils.RecordCalls(), Equals, 0)
	c.Assert(s.stats.Value(prepFailuresMetric, nil), Equals, 1.0)

	c.Assert(dlog.Flush(), IsNil)
	c.Assert(strings.Contains(out.String(), "W skipping call to"), IsTrue)
}

func (s *BridgeSuite) TestInferredPrepFailureStrict(c *C) {
	s.options.StrictInferred = true
	d, err := NewInferredDispatcher(test_utils.RecordInt64s(), s.options)
	c.Assert(err, IsNil)
	defer d.Close()
	prepareInferred = failingPrepare
	defer func() { prepareInferred = prepareCallInterface }()

	_, err = d.Invoke(value.Int(1), value.Int(2))
	c.Assert(err, HasKind, CallInterfacePrepFailed)
	c.Assert(test_utils.RecordCalls(), Equals, 0)
	c.Assert(
		s.stats.Value(
			callErrorsMetric,
			map[string]string{kindTag: string(CallInterfacePrepFailed)}),
		Equals,
		1.0)
}

func (s *BridgeSuite) TestInferredClose(c *C) {
	released := 0
	d, err := newInferredDispatcher(
		test_utils.RecordInt64s(),
		"record_int64s",
		s.options,
		func() { released++ })
	c.Assert(err, IsNil)
	c.Assert(d.String(), Matches, "record_int64s@0x[0-9a-f]+")

	d.Close()
	d.Close()
	c.Assert(released, Equals, 1)

	_, err = d.Invoke(value.Int(1), value.Int(2))
	c.Assert(err, HasKind, DispatcherClosed)
	c.Assert(err.Error(), Matches, "(?s).*record_int64s has been closed.*")
	c.Assert(test_utils.RecordCalls(), Equals, 0)
}

func (s *BridgeSuite) TestMakeString(c *C) {
	buf := test_utils.CString("native")
	defer test_utils.Free(buf)

	v, err := MakeString(value.Pointer(buf))
	c.Assert(err, IsNil)
	c.Assert(v.Equal(value.String("native")), IsTrue)
}
