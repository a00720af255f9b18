/*
Package pskrx is the control plane of a live PSK demodulator. It owns the
stage graph that turns a stream of complex baseband samples into symbols
and lets its parameters and topology change while samples keep flowing.

Stages

The receiver is a fixed chain of stages created from a block library:

    filter  - root raised cosine matched filter;
    agc     - automatic gain control;
    carrier - Costas carrier recovery;
    timing  - Mueller and Muller symbol clock recovery;
    capture - symbol capture buffer for the display.

The level meter taps the filter output. Recording and network sinks are
optional and hang off the timing stage.

Stages live in an arena addressed by name. Edges are kept separately and
the graph refuses any edge that would close a cycle. A batch pushed into
the filter is processed depth first along the edges.

Mutations

Every operation that changes the graph or its parameters holds one
exclusive lock, the same lock Process holds for one batch. Changes fall
into two kinds:

    in place - symbol rate, gains and roll-off are applied to the existing
               blocks as mutations, see mutability package;
    rebuild  - modulation order and input rate need new blocks, so every
               edge is dropped, library blocks are recreated and the chain
               is wired again.

The capture buffer and attached sinks hold no parameter dependent state and
survive rebuilds. A failed rebuild leaves the controller in the terminal
failed state.

Execution

Samples can be pushed with Process or pumped from a source in a separate
goroutine:

    c := pskrx.New(dsp.Native{})
    err := c.Configure(2400000)
    errc := c.Run(pump, 1024)
    err = pskrx.Wait(errc)

Copies of the latest symbols are taken from the capture buffer without the
controller lock, so the display never stalls the demodulator.
*/
package pskrx
