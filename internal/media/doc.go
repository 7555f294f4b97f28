// Package media renders the image that accompanies an extracted exercise. The
// analysis service reports where the exercise sits on the page as a region on
// a 0-1000 grid; LocalRenderer crops the source image to that region and
// stores the result as a PNG file whose path becomes the media reference.
package media
