// Package ldpccoding drives the per-slot LDPC coding chain: it partitions
// transport blocks into macro-blocks, runs the encoder kernel and rate
// matching on a worker pool and joins the results into the transport-block
// output. SlotDecoder is the receive-side counterpart feeding HARQ soft
// buffers.
package ldpccoding
