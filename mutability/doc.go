/*
Package mutability provides types to make pipeline stages mutable.

Stages of a running pipeline are read by the sample path while the user
edits parameters from the display. Parameter changes are expressed as
mutations: closures bound to the mutability of the stage they change. The
controller collects mutations outside of the sample path and applies them
to the stages while it holds the pipeline lock, so a stage never observes
a half-written parameter.

Mutable stage

Mutability is a part of stage handles. Nil value of mutability is
immutable. To make it mutable, the one should do the following:

	Mutability: mutability.Mutable()

Every rebuild of the stage graph assigns fresh mutabilities, so mutations
prepared for a previous graph never reach the new stages.
*/
package mutability
