package stream_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recstream/internal/bridge"
	"github.com/roach88/recstream/internal/record"
	"github.com/roach88/recstream/internal/stream"
	"github.com/roach88/recstream/internal/testutil"
)

func drive(t *testing.T, s stream.Stream, sink stream.Sink, entries ...stream.Entry) {
	t.Helper()
	for _, e := range entries {
		_, err := s.Write(e, sink)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close(sink))
}

func lines(ss ...string) []stream.Entry {
	out := make([]stream.Entry, len(ss))
	for i, s := range ss {
		out[i] = stream.FromLine(s)
	}
	return out
}

func TestEntryConversions(t *testing.T) {
	r, err := stream.FromLine(`{"a":1}`).ToRecord()
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Field("a").IntValue())

	line, err := stream.FromRecord(record.Hash(record.P("b", record.Bool(true)))).ToLine()
	require.NoError(t, err)
	assert.Equal(t, `{"b":true}`, line)

	_, err = stream.BeginFile("f").ToRecord()
	var ee *stream.EntryError
	assert.ErrorAs(t, err, &ee)
	_, err = stream.BeginFile("f").ToLine()
	assert.ErrorAs(t, err, &ee)
}

func TestParseDeparse(t *testing.T) {
	c := &testutil.Collector{}
	s := stream.Chain(stream.Parse(), stream.Deparse())

	in := append([]stream.Entry{stream.BeginFile("in.json")}, lines(`{"z":1,"a":2}`, `[1, 2.50]`)...)
	drive(t, s, c.Sink, in...)

	assert.Equal(t, []string{
		"BeginFile(in.json)",
		`Line("{\"a\":2,\"z\":1}")`,
		`Line("[1,2.5]")`,
	}, c.Strings())
}

func TestParseRejectsRecords(t *testing.T) {
	c := &testutil.Collector{}
	_, err := stream.Parse().Write(stream.FromRecord(record.Int(1)), c.Sink)
	var ee *stream.EntryError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, stream.KindRecord, ee.Got)

	_, err = stream.Parse().Write(stream.FromLine("{bad"), c.Sink)
	assert.Error(t, err)

	_, err = stream.Deparse().Write(stream.FromLine("x"), c.Sink)
	assert.ErrorAs(t, err, &ee)
}

func TestTransformAndFilter(t *testing.T) {
	c := &testutil.Collector{}
	inc := stream.Transform(func(r record.Record) (record.Record, error) {
		n := r.Field("n").IntValue()
		err := r.Set(record.MustPath("n"), record.Int(n+1))
		return r, err
	})
	even := stream.Filter(func(r record.Record) (bool, error) {
		return r.Field("n").IntValue()%2 == 0, nil
	})
	drive(t, stream.Chain(inc, even), c.Sink, lines(`{"n":1}`, `{"n":2}`, `{"n":3}`)...)

	assert.Equal(t, []string{`{"n":2}`, `{"n":4}`}, c.Records())
}

func TestCompoundClosesInOrderAndFlushes(t *testing.T) {
	var order []string
	buffer := func(name string) stream.Stream {
		return stream.Closures([]stream.Entry(nil),
			func(buf *[]stream.Entry, e stream.Entry, _ stream.Sink) (bool, error) {
				*buf = append(*buf, e)
				return true, nil
			},
			func(buf *[]stream.Entry, sink stream.Sink) error {
				order = append(order, name)
				for _, e := range *buf {
					if _, err := sink(e); err != nil {
						return err
					}
				}
				return nil
			})
	}

	c := &testutil.Collector{}
	drive(t, stream.Chain(buffer("a"), buffer("b"), buffer("c")), c.Sink, lines("1", "2")...)

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, []string{`Line("1")`, `Line("2")`}, c.Strings())
}

func TestCloseOnceAcrossCompositions(t *testing.T) {
	var reg testutil.Registry
	c := &testutil.Collector{}

	subs := stream.NewSubStreams()
	fanout := stream.Closures(subs,
		func(f **stream.SubStreams, e stream.Entry, sink stream.Sink) (bool, error) {
			line, _ := e.ToLine()
			key := line[:1]
			return true, (*f).Write(key, func() (stream.Stream, error) {
				return reg.Track("sub-"+key, stream.Chain(reg.Track("inner-"+key, nil), reg.Track("tail-"+key, nil))), nil
			}, e, sink)
		},
		func(f **stream.SubStreams, sink stream.Sink) error {
			return (*f).Close(sink)
		})

	s := stream.Chain(reg.Track("head", nil), fanout, reg.Track("out", nil))
	drive(t, s, c.Sink, lines("a1", "b1", "a2", "c1")...)

	assert.Equal(t, 1+3*3+1, reg.Len())
	assert.NoError(t, reg.Check())
	assert.Len(t, c.Entries(), 4)
	assert.Equal(t, []string{"a", "b", "c"}, subs.Keys())
}

func TestProtocolMisuse(t *testing.T) {
	c := &testutil.Collector{}
	for name, s := range map[string]stream.Stream{
		"identity": stream.Identity(),
		"compound": stream.Compound(stream.Identity(), stream.Identity()),
		"guard":    stream.Guard(testutil.Track("t", nil)),
		"bg": stream.Background(context.Background(), 2, func(_ context.Context, back *bridge.Back[stream.Entry, stream.Entry]) error {
			for {
				if _, ok := back.Read(); !ok {
					return nil
				}
			}
		}),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Close(c.Sink))
			_, err := s.Write(stream.FromLine("x"), c.Sink)
			assert.ErrorIs(t, err, stream.ErrWriteAfterClose)
			assert.ErrorIs(t, s.Close(c.Sink), stream.ErrCloseTwice)
		})
	}
}

func TestCompoundClosesSecondEvenWhenFirstFails(t *testing.T) {
	failing := stream.Closures(0, func(*int, stream.Entry, stream.Sink) (bool, error) {
		return true, nil
	}, func(*int, stream.Sink) error {
		return errors.New("flush failed")
	})
	tail := testutil.Track("tail", nil)

	err := stream.Compound(failing, tail).Close(stream.Discard)
	assert.ErrorContains(t, err, "flush failed")
	assert.Equal(t, 1, tail.Closes())
}

func TestFlowHintIsAdvisory(t *testing.T) {
	// a sink that refuses after the first entry must not change the output
	// of stages that ignore the hint
	c := &testutil.Collector{Refuse: 1}
	subs := stream.NewSubStreams()
	fanout := stream.Closures(subs,
		func(f **stream.SubStreams, e stream.Entry, sink stream.Sink) (bool, error) {
			line, _ := e.ToLine()
			return true, (*f).Write(line[:1], func() (stream.Stream, error) { return stream.Identity(), nil }, e, sink)
		},
		func(f **stream.SubStreams, sink stream.Sink) error { return (*f).Close(sink) })

	drive(t, stream.Chain(stream.Identity(), fanout, stream.Identity()), c.Sink, lines("a1", "b1", "a2", "b2")...)

	assert.Equal(t, []string{`Line("a1")`, `Line("b1")`, `Line("a2")`, `Line("b2")`}, c.Strings())
}

func TestSubStreamsCloseInOrder(t *testing.T) {
	var closed []string
	subs := stream.NewSubStreams()
	for _, k := range []string{"x", "y", "z"} {
		k := k
		_, err := subs.Get(k, func() (stream.Stream, error) {
			return stream.Closures(0, func(*int, stream.Entry, stream.Sink) (bool, error) { return true, nil },
				func(*int, stream.Sink) error {
					closed = append(closed, k)
					return nil
				}), nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, subs.CloseInOrder(stream.Discard, []string{"z", "nope"}))
	assert.Equal(t, []string{"z", "x", "y"}, closed)

	_, err := subs.Get("w", nil)
	assert.ErrorIs(t, err, stream.ErrWriteAfterClose)
}

func TestSubStreamsBroadcast(t *testing.T) {
	c := &testutil.Collector{}
	subs := stream.NewSubStreams()
	for _, k := range []string{"a", "b"} {
		_, err := subs.Get(k, func() (stream.Stream, error) { return stream.Identity(), nil })
		require.NoError(t, err)
	}
	require.NoError(t, subs.Broadcast(stream.BeginFile("f"), c.Sink))
	assert.Equal(t, []string{"BeginFile(f)", "BeginFile(f)"}, c.Strings())
}

func TestBackgroundStage(t *testing.T) {
	upper := func(_ context.Context, back *bridge.Back[stream.Entry, stream.Entry]) error {
		for {
			e, ok := back.Read()
			if !ok {
				return nil
			}
			line, err := e.ToLine()
			if err != nil {
				return err
			}
			if !back.Write(stream.FromLine(strings.ToUpper(line))) {
				return nil
			}
		}
	}

	c := &testutil.Collector{}
	var in []stream.Entry
	var want []string
	for i := 0; i < 50; i++ {
		in = append(in, stream.FromLine(fmt.Sprintf("line%d", i)))
		want = append(want, fmt.Sprintf("Line(%q)", fmt.Sprintf("LINE%d", i)))
	}
	drive(t, stream.Chain(stream.Background(context.Background(), 3, upper), stream.Identity()), c.Sink, in...)

	assert.Equal(t, want, c.Strings())
}

func TestBackgroundWorkerError(t *testing.T) {
	boom := errors.New("boom")
	s := stream.Background(context.Background(), 1, func(context.Context, *bridge.Back[stream.Entry, stream.Entry]) error {
		return boom
	})
	for i := 0; i < 5; i++ {
		ok, err := s.Write(stream.FromLine("x"), stream.Discard)
		if !ok {
			assert.ErrorIs(t, err, boom)
			break
		}
	}
	assert.ErrorIs(t, s.Close(stream.Discard), boom)
}
