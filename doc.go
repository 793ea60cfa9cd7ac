/*
Package akaze detects and describes distinctive local image features in a
nonlinear diffusion scale space, so that the same physical point can be
recognized across different views of a scene.

The package provides a command line interface supporting various flags for the
detector and the descriptor extraction. To check the supported commands type:

	$ akaze --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"fmt"
		"github.com/philippefoubert/akaze"
	)

	func main() {
		det, err := akaze.New(akaze.DefaultOptions())
		if err != nil {
			fmt.Printf("Error configuring the detector: %s", err.Error())
			return
		}

		kpts, desc, err := det.DetectAndCompute(img)
		if err != nil {
			fmt.Printf("Error detecting features: %s", err.Error())
			return
		}
		fmt.Println(len(kpts), desc.Count)
	}
*/
package akaze
