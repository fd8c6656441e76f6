package slogx

// ErrorKey is the key used by [Error] for the error attribute.
const ErrorKey = "error"
