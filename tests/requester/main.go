package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

const baseURL = "http://localhost:8080/orders/"

func main() {
	for {
		var wg sync.WaitGroup
		n := rand.Intn(10)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				doRequest()
			}()
		}
		wg.Wait()
		time.Sleep(20 * time.Millisecond)
	}
}

func doRequest() {
	// mostly hot ids, sometimes a miss
	id := rand.Intn(20) + 1
	if rand.Intn(5) == 0 {
		id = rand.Intn(100000)
	}

	url := fmt.Sprintf("%s%d", baseURL, id)
	resp, err := http.Get(url)
	if err != nil {
		fmt.Println("request failed:", err)
		return
	}
	fmt.Println("GET", url, "->", resp.Status)
	resp.Body.Close()
}
