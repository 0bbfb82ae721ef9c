package generator

import "math/rand"

// usCities is the pool of transaction origin locations used by the
// synthetic load.
var usCities = []string{
	"New York, NY", "Los Angeles, CA", "Chicago, IL", "Houston, TX",
	"Phoenix, AZ", "Philadelphia, PA", "San Antonio, TX", "San Diego, CA",
	"Dallas, TX", "San Jose, CA", "Austin, TX", "Jacksonville, FL",
	"Fort Worth, TX", "Columbus, OH", "Charlotte, NC", "San Francisco, CA",
	"Indianapolis, IN", "Seattle, WA", "Denver, CO", "Washington, DC",
	"Boston, MA", "El Paso, TX", "Nashville, TN", "Detroit, MI",
	"Oklahoma City, OK", "Portland, OR", "Las Vegas, NV", "Memphis, TN",
	"Louisville, KY", "Baltimore, MD", "Milwaukee, WI", "Albuquerque, NM",
	"Tucson, AZ", "Fresno, CA", "Mesa, AZ", "Sacramento, CA",
	"Atlanta, GA", "Kansas City, MO", "Colorado Springs, CO", "Omaha, NE",
	"Raleigh, NC", "Miami, FL", "Long Beach, CA", "Virginia Beach, VA",
	"Oakland, CA", "Minneapolis, MN", "Tulsa, OK", "Tampa, FL",
}

// RandomLocation picks a city for a synthetic transaction
func RandomLocation() string {
	return usCities[rand.Intn(len(usCities))]
}
