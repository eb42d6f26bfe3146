// Package facematch provides geometry and name helpers shared by face detection,
// the gallery and the web handlers.
package facematch
