// Package loader loads the weight bundles of a two-tower (image/text)
// embedding model from a model directory.
//
// A model directory holds one file per encoder, named after the tower and
// the container format:
//
//	<model-dir>/image_encoder_weights.{npz|safetensors}
//	<model-dir>/text_encoder_weights.{npz|safetensors}
//
// The container format is chosen by the caller; there is no auto-detection.
//
// Example:
//
//	l := loader.New(loader.SafeTensorsContainer{})
//	model, err := l.LoadFullModel(ctx, "models/mobileclip")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(len(model.Image), len(model.Text))
//
// Every call re-reads storage and returns a freshly allocated Bundle owned by
// the caller. Errors wrap ErrNotFound when the weight file is absent and
// ErrDecode (as *DecodeError) when it cannot be decoded.
package loader
